package classes

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/blacktop/typedstream/archiver"
)

// NSUUID holds an archived NSUUID's 16 raw identifier bytes, the same
// NS.uuidbytes payload ios/nskeyedarchiver's NewNSUUIDFromBytes decodes
// from the other Apple archive format - here it arrives as a fixed-size
// byte array ivar instead of a dictionary entry.
type NSUUID struct {
	Bytes []byte
}

func (n *NSUUID) UnarchiveSelf(u *archiver.Unarchiver, class *archiver.Class) error {
	if err := checkVersion(class, 0); err != nil {
		return err
	}
	raw, err := u.DecodeValueOfType("[16c]")
	if err != nil {
		return err
	}
	arr, ok := raw.(archiver.Array)
	if !ok {
		return fmt.Errorf("classes: %s: expected a byte array ivar, got %T", class, raw)
	}
	data, ok := arr.Bytes()
	if !ok || len(data) != 16 {
		return fmt.Errorf("classes: %s: expected 16 identifier bytes, got %d", class, len(data))
	}
	n.Bytes = data
	return nil
}

func (n NSUUID) String() string {
	id, err := uuid.FromBytes(n.Bytes)
	if err != nil {
		return fmt.Sprintf("invalid NSUUID bytes %x: %v", n.Bytes, err)
	}
	return id.String()
}
