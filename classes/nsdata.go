package classes

import "github.com/blacktop/typedstream/archiver"

// NSData holds an archived NSData's raw bytes.
type NSData struct {
	Data []byte
}

func (d *NSData) UnarchiveSelf(u *archiver.Unarchiver, class *archiver.Class) error {
	data, err := decodeNSDataIvars(u, class)
	if err != nil {
		return err
	}
	d.Data = data
	return nil
}

// decodeNSDataIvars reads NSData's wire representation: a signed length
// followed by that many raw bytes, version 0 only. NSMutableData shares
// this exact wire layout, so it calls this helper directly rather than
// going through NSData's UnarchiveSelf - there's no automatic
// superclass dispatch here to do it for us.
func decodeNSDataIvars(u *archiver.Unarchiver, class *archiver.Class) ([]byte, error) {
	if err := checkVersion(class, 0); err != nil {
		return nil, err
	}
	return u.DecodeDataObject()
}

// NSMutableData is wire-identical to NSData; Foundation only
// distinguishes the two at the Objective-C API level, not in the
// archived bytes.
type NSMutableData struct {
	NSData
}

func (d *NSMutableData) UnarchiveSelf(u *archiver.Unarchiver, class *archiver.Class) error {
	nsData := class.Superclass
	if nsData == nil {
		return classChainTooShort(class, "NSData")
	}
	data, err := decodeNSDataIvars(u, nsData)
	if err != nil {
		return err
	}
	d.Data = data
	return checkVersion(class, 0)
}
