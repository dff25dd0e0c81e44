package classes

import (
	"fmt"

	"github.com/blacktop/typedstream/archiver"
)

// NSString holds an archived NSString's text.
type NSString struct {
	Value string
}

func (s *NSString) UnarchiveSelf(u *archiver.Unarchiver, class *archiver.Class) error {
	value, err := decodeNSStringIvars(u, class)
	if err != nil {
		return err
	}
	s.Value = value
	return nil
}

// decodeNSStringIvars reads NSString's version-1 wire representation: a
// single raw ("+") string, treated as UTF-8. NSMutableString shares
// this layout and calls the helper directly for the same reason
// decodeNSDataIvars exists.
func decodeNSStringIvars(u *archiver.Unarchiver, class *archiver.Class) (string, error) {
	if err := checkVersion(class, 1); err != nil {
		return "", err
	}
	raw, err := u.DecodeValueOfType("+")
	if err != nil {
		return "", err
	}
	data, ok := raw.([]byte)
	if !ok {
		return "", fmt.Errorf("classes: %s: raw string ivar decoded to %T, not []byte", class, raw)
	}
	return string(data), nil
}

// NSMutableString is wire-identical to NSString.
type NSMutableString struct {
	NSString
}

func (s *NSMutableString) UnarchiveSelf(u *archiver.Unarchiver, class *archiver.Class) error {
	nsString := class.Superclass
	if nsString == nil {
		return classChainTooShort(class, "NSString")
	}
	value, err := decodeNSStringIvars(u, nsString)
	if err != nil {
		return err
	}
	s.Value = value
	return checkVersion(class, 1)
}
