// Package classes registers a small, illustrative set of Foundation
// class decoders with the archiver package, the way
// ios/nskeyedarchiver/objectivec_classes.go registers decoders for the
// other Apple archive format this module's teacher also decodes. A full
// Foundation class registry is out of scope; these exist so
// archiver.Register has a realistic caller and so the CLI has something
// to print besides GenericArchivedObject.
package classes

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/blacktop/typedstream/archiver"
)

var classLog = log.WithField("component", "classes")

// SetupDecoders registers every decoder this package provides. Callers
// that only care about the raw event stream, or that want
// GenericArchivedObject fallbacks for everything, simply never call it.
func SetupDecoders() {
	archiver.Register("NSObject", func() archiver.ArchivedObject { return &NSObject{} })
	archiver.Register("NSData", func() archiver.ArchivedObject { return &NSData{} })
	archiver.Register("NSMutableData", func() archiver.ArchivedObject { return &NSMutableData{} })
	archiver.Register("NSString", func() archiver.ArchivedObject { return &NSString{} })
	archiver.Register("NSMutableString", func() archiver.ArchivedObject { return &NSMutableString{} })
	archiver.Register("NSUUID", func() archiver.ArchivedObject { return &NSUUID{} })
	archiver.Register("NSDate", func() archiver.ArchivedObject { return &NSDate{} })
	classLog.Debug("registered Foundation class decoders")
}

// NSObject is the root of every Foundation archived class chain. It
// carries no ivars of its own; the only thing worth checking is that
// the archiving code didn't use a version of NSObject's wire format
// this decoder doesn't know about.
type NSObject struct{}

func (o *NSObject) UnarchiveSelf(u *archiver.Unarchiver, class *archiver.Class) error {
	return checkVersion(class, 0)
}

func checkVersion(class *archiver.Class, want int) error {
	if class.Version != want {
		return fmt.Errorf("classes: unsupported archived version for %s: want %d, got %d", class.Name, want, class.Version)
	}
	return nil
}

// classChainTooShort reports a class whose superclass chain doesn't
// reach an expected ancestor - a decoder for a "Mutable" subclass
// expects its immediate superclass to be the plain variant, since Go's
// ArchivedObject has no automatic dispatch up an inheritance chain.
func classChainTooShort(class *archiver.Class, want string) error {
	return fmt.Errorf("classes: %s: expected a %s superclass in the archived class chain", class, want)
}
