package classes

import (
	"fmt"
	"time"

	"github.com/blacktop/typedstream/archiver"
)

// nsReferenceDate is 2001-01-01 00:00:00 UTC expressed as a Unix
// timestamp in nanoseconds - the epoch every NSDate/NSTimeInterval
// value is relative to, the same constant
// ios/nskeyedarchiver/objectivec_classes.go applies to the NS.time
// field of the other Apple archive format.
const nsReferenceDate = 978307200 * int64(time.Second)

// NSDate holds an archived NSDate's absolute timestamp.
type NSDate struct {
	Timestamp time.Time
}

func (d *NSDate) UnarchiveSelf(u *archiver.Unarchiver, class *archiver.Class) error {
	if err := checkVersion(class, 0); err != nil {
		return err
	}
	raw, err := u.DecodeValueOfType("d")
	if err != nil {
		return err
	}
	seconds, ok := raw.(float64)
	if !ok {
		return fmt.Errorf("classes: %s: expected a floating point ivar, got %T", class, raw)
	}
	nanos := nsReferenceDate + int64(seconds*float64(time.Second))
	d.Timestamp = time.Unix(0, nanos).UTC()
	return nil
}

func (d NSDate) String() string {
	return d.Timestamp.Format(time.RFC3339)
}
