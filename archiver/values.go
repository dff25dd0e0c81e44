// Package archiver implements the high-level object model layered on
// top of a typedstream event sequence: classes, their inheritance
// chains, archived objects (known or generic), arrays, and structs.
package archiver

import "fmt"

// Class describes one class as recorded in an archived object's class
// chain: its name, the version the archiving code wrote, and (unless
// this is a root class) the superclass it extends.
type Class struct {
	Name       []byte
	Version    int
	Superclass *Class
}

func (c *Class) String() string {
	if c == nil {
		return "<nil class>"
	}
	if c.Superclass != nil {
		return fmt.Sprintf("%s v%d, extends %s", c.Name, c.Version, c.Superclass)
	}
	return fmt.Sprintf("%s v%d", c.Name, c.Version)
}

// IsKindOf reports whether c or any of its superclasses has the given
// name.
func (c *Class) IsKindOf(name string) bool {
	for cur := c; cur != nil; cur = cur.Superclass {
		if string(cur.Name) == name {
			return true
		}
	}
	return false
}

// TypedGroup is a group of one or more values that shared a single
// type-encoding string on the wire, as produced by a single call to
// the Objective-C archiver's "encode multiple values" entry point.
type TypedGroup struct {
	Encodings [][]byte
	Values    []interface{}
}

// GenericArchivedObject represents an archived object whose class has
// no registered decoder: its class chain is preserved, and its ivar
// groups are captured verbatim rather than interpreted.
type GenericArchivedObject struct {
	Class    *Class
	Contents []TypedGroup
}

// Array is a fixed-length C array read from the stream. Elements holds
// either []byte (for the byte-array fast path over "c"/"C" elements)
// or []interface{} for every other element type.
type Array struct {
	Elements interface{}
}

// Bytes returns the array's contents as raw bytes and true, if this
// array was in fact a byte array.
func (a Array) Bytes() ([]byte, bool) {
	b, ok := a.Elements.([]byte)
	return b, ok
}

// Values returns the array's contents as a generic slice and true, for
// every array that isn't a byte array.
func (a Array) Values() ([]interface{}, bool) {
	v, ok := a.Elements.([]interface{})
	return v, ok
}

// GenericStruct is a struct value whose fields are captured positionally
// without any class-specific interpretation.
type GenericStruct struct {
	Name   []byte
	Fields []interface{}
}
