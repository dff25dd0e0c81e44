package archiver

import (
	"bytes"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/blacktop/typedstream/typedstream"
)

// Unarchiver decodes archived class-tagged objects from a typedstream
// event sequence. It owns exactly one reference table shared across
// classes, objects, and C strings, mirroring the single reference
// numbering space the wire format itself uses.
type Unarchiver struct {
	reader *typedstream.Reader
	refs   *refTable
	log    *log.Entry
}

// NewUnarchiver validates the stream header (via the underlying
// typedstream.Reader) and returns an Unarchiver ready to decode its
// contents.
func NewUnarchiver(r io.Reader) (*Unarchiver, error) {
	reader, err := typedstream.NewReader(r)
	if err != nil {
		return nil, err
	}
	u := &Unarchiver{
		reader: reader,
		refs:   &refTable{},
		log:    log.WithField("component", "archiver.Unarchiver"),
	}
	u.log.Debugf("opened unarchiver: streamer version %d", reader.Header.StreamerVersion)
	return u, nil
}

// Close releases the underlying reader.
func (u *Unarchiver) Close() {
	u.reader.Close()
}

func (u *Unarchiver) next() (typedstream.Event, error) {
	ev, err := u.reader.Next()
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func unexpectedEvent(context string, ev typedstream.Event) error {
	return fmt.Errorf("archiver: expected %s, got %T", context, ev)
}

// DecodeAnyValue decodes a single value of unknown or already-known
// shape, dispatching purely on which kind of event comes next. expected
// is the type encoding the caller expects at this position; it is only
// consulted for array element types, which the wire format doesn't
// repeat once the enclosing BeginArray has been read. Struct fields are
// decoded without an expected encoding.
func (u *Unarchiver) DecodeAnyValue(expected []byte) (interface{}, error) {
	ev, err := u.next()
	if err != nil {
		return nil, err
	}
	return u.decodeAnyFromEvent(ev, expected)
}

// decodeClassChain reads the rest of a class's superclass chain (the
// stream lists most-derived first) and assigns reference numbers to
// each newly seen class in the same order they appeared on the wire.
func (u *Unarchiver) decodeClassChain(first typedstream.SingleClass) (*Class, error) {
	singles := []typedstream.SingleClass{first}

	var superclass *Class
	for {
		ev, err := u.next()
		if err != nil {
			return nil, err
		}
		if sc, ok := ev.(typedstream.SingleClass); ok {
			singles = append(singles, sc)
			continue
		}
		switch v := ev.(type) {
		case typedstream.Nil:
			superclass = nil
		case typedstream.ObjectReference:
			resolved, err := u.refs.resolve(v)
			if err != nil {
				return nil, err
			}
			cls, ok := resolved.(*Class)
			if !ok {
				return nil, fmt.Errorf("archiver: class reference %d does not point to a class", v.ID)
			}
			superclass = cls
		default:
			return nil, unexpectedEvent("SingleClass, ObjectReference, or Nil", ev)
		}
		break
	}

	// singles lists most-derived first; build Class objects from the
	// root outward so each one's Superclass pointer is available, then
	// assign reference numbers in the original (most-derived-first) order.
	built := make([]*Class, len(singles))
	next := superclass
	for i := len(singles) - 1; i >= 0; i-- {
		next = &Class{Name: singles[i].Name, Version: singles[i].Version, Superclass: next}
		built[i] = next
	}
	for _, cls := range built {
		u.refs.append(typedstream.ReferenceClass, cls)
	}
	return built[0], nil
}

// decodeObject reads one archived object: its class chain, then either
// a registered class's own ivar decoding or a generic capture of its
// ivar groups, terminated by EndObject.
func (u *Unarchiver) decodeObject() (interface{}, error) {
	placeholder := u.refs.reserve(typedstream.ReferenceObject)

	classVal, err := u.DecodeAnyValue([]byte("#"))
	if err != nil {
		return nil, err
	}
	class, ok := classVal.(*Class)
	if !ok {
		return nil, fmt.Errorf("archiver: object class must decode to a class, got %T", classVal)
	}

	factory, known := Lookup(string(class.Name))
	u.log.WithField("registered", known).Debugf("dispatching object of class %s", class)
	if !known {
		obj := &GenericArchivedObject{Class: class}
		u.refs.set(placeholder, typedstream.ReferenceObject, obj)

		for {
			ev, err := u.next()
			if err != nil {
				return nil, err
			}
			if _, done := ev.(typedstream.EndObject); done {
				break
			}
			group, err := u.decodeTypedValuesFrom(ev)
			if err != nil {
				return nil, err
			}
			obj.Contents = append(obj.Contents, group)
		}
		return obj, nil
	}

	obj := factory()
	u.refs.set(placeholder, typedstream.ReferenceObject, obj)

	if err := obj.UnarchiveSelf(u, class); err != nil {
		return nil, wrapClassDecoderError(class, err)
	}
	end, err := u.next()
	if err != nil {
		return nil, err
	}
	if _, ok := end.(typedstream.EndObject); !ok {
		return nil, unexpectedEvent("EndObject", end)
	}
	return obj, nil
}

func wrapClassDecoderError(class *Class, err error) error {
	return fmt.Errorf("archiver: decoding %s: %w", class, err)
}

func (u *Unarchiver) decodeArrayBody(begin typedstream.BeginArray, expected []byte) (Array, error) {
	elementEncoding := arrayElementEncoding(expected)
	elements := make([]interface{}, begin.Length)
	for i := range elements {
		v, err := u.DecodeAnyValue(elementEncoding)
		if err != nil {
			return Array{}, err
		}
		elements[i] = v
	}
	end, err := u.next()
	if err != nil {
		return Array{}, err
	}
	if _, ok := end.(typedstream.EndArray); !ok {
		return Array{}, unexpectedEvent("EndArray", end)
	}
	return Array{Elements: elements}, nil
}

// arrayElementEncoding extracts the element encoding from an array type
// encoding such as "[10i]", falling back to nil (unknown expectation) if
// expected isn't recognizably an array encoding.
func arrayElementEncoding(expected []byte) []byte {
	d, _, err := typedstream.ParseTypeEncoding(expected)
	if err != nil || d.Kind != typedstream.KindArray {
		return nil
	}
	return d.Element.Encoding()
}

func (u *Unarchiver) decodeStructBody(begin typedstream.BeginStruct) (GenericStruct, error) {
	var fields []interface{}
	for {
		ev, err := u.reader.Next()
		if err != nil {
			return GenericStruct{}, err
		}
		if _, done := ev.(typedstream.EndStruct); done {
			break
		}
		// Struct fields aren't individually type-prefixed on the wire;
		// the reader already knows their encodings from the struct's own
		// type encoding and reads them as plain values or nested
		// structural events, so we just keep decoding "any" value from
		// whatever event we're handed until EndStruct.
		v, err := u.decodeAnyFromEvent(ev, nil)
		if err != nil {
			return GenericStruct{}, err
		}
		fields = append(fields, v)
	}
	return GenericStruct{Name: begin.Name, Fields: fields}, nil
}

// decodeAnyFromEvent is DecodeAnyValue's logic applied to an event that
// has already been read, used where the caller (struct field decoding)
// consumes events itself rather than letting DecodeAnyValue call next().
func (u *Unarchiver) decodeAnyFromEvent(ev typedstream.Event, expected []byte) (interface{}, error) {
	switch v := ev.(type) {
	case typedstream.Nil:
		return nil, nil
	case typedstream.Value:
		return v.Data, nil
	case typedstream.RawString:
		return v.Data, nil
	case typedstream.ObjectReference:
		return u.refs.resolve(v)
	case typedstream.CString:
		u.refs.append(typedstream.ReferenceCString, v.Data)
		return v.Data, nil
	case typedstream.Selector:
		return v.Data, nil
	case typedstream.SingleClass:
		return u.decodeClassChain(v)
	case typedstream.BeginObject:
		return u.decodeObject()
	case typedstream.ByteArray:
		return Array{Elements: v.Data}, nil
	case typedstream.BeginArray:
		return u.decodeArrayBody(v, expected)
	case typedstream.BeginStruct:
		return u.decodeStructBody(v)
	default:
		return nil, unexpectedEvent("the beginning of an untyped value", ev)
	}
}

// DecodeTypedValues decodes the next BeginTypedValues/.../EndTypedValues
// group, whatever its encodings turn out to be.
func (u *Unarchiver) DecodeTypedValues() (TypedGroup, error) {
	ev, err := u.next()
	if err != nil {
		return TypedGroup{}, err
	}
	return u.decodeTypedValuesFrom(ev)
}

func (u *Unarchiver) decodeTypedValuesFrom(begin typedstream.Event) (TypedGroup, error) {
	bv, ok := begin.(typedstream.BeginTypedValues)
	if !ok {
		return TypedGroup{}, unexpectedEvent("BeginTypedValues", begin)
	}

	values := make([]interface{}, len(bv.Encodings))
	for i, enc := range bv.Encodings {
		v, err := u.DecodeAnyValue(enc)
		if err != nil {
			return TypedGroup{}, err
		}
		values[i] = v
	}

	end, err := u.next()
	if err != nil {
		return TypedGroup{}, err
	}
	if _, ok := end.(typedstream.EndTypedValues); !ok {
		return TypedGroup{}, unexpectedEvent("EndTypedValues", end)
	}

	return TypedGroup{Encodings: bv.Encodings, Values: values}, nil
}

// DecodeValuesOfTypes decodes a group of typed values that must match
// the given encodings exactly (up to the anonymous-struct-name rule).
func (u *Unarchiver) DecodeValuesOfTypes(encodings ...string) ([]interface{}, error) {
	if len(encodings) == 0 {
		return nil, fmt.Errorf("archiver: expected at least one type encoding")
	}
	group, err := u.DecodeTypedValues()
	if err != nil {
		return nil, err
	}
	expected := make([][]byte, len(encodings))
	for i, e := range encodings {
		expected[i] = []byte(e)
	}
	if !typedstream.AllEncodingsMatch(group.Encodings, expected) {
		return nil, fmt.Errorf("archiver: expected type encodings %q, got %q in stream", encodings, group.Encodings)
	}
	return group.Values, nil
}

// DecodeValueOfType decodes a single typed value with the given
// encoding.
func (u *Unarchiver) DecodeValueOfType(encoding string) (interface{}, error) {
	values, err := u.DecodeValuesOfTypes(encoding)
	if err != nil {
		return nil, err
	}
	return values[0], nil
}

// DecodeDataObject decodes an NSData-style length-prefixed byte blob:
// a signed length followed by that many raw bytes.
func (u *Unarchiver) DecodeDataObject() ([]byte, error) {
	lengthVal, err := u.DecodeValueOfType("i")
	if err != nil {
		return nil, err
	}
	length, ok := lengthVal.(int64)
	if !ok || length < 0 {
		return nil, fmt.Errorf("archiver: invalid data object length %v", lengthVal)
	}
	arrayVal, err := u.DecodeValueOfType(fmt.Sprintf("[%dc]", length))
	if err != nil {
		return nil, err
	}
	arr, ok := arrayVal.(Array)
	if !ok {
		return nil, fmt.Errorf("archiver: data object did not decode to an array")
	}
	data, ok := arr.Bytes()
	if !ok {
		return nil, fmt.Errorf("archiver: data object array was not a byte array")
	}
	return data, nil
}

// DecodePropertyList decodes an NSData-shaped byte blob and interprets
// it as an old-style NeXTSTEP binary property list, the way
// -[NSUnarchiver decodePropertyList] does. This is a distinct, much
// simpler format from the modern bplist00 property lists howett.net/plist
// parses - no magic number, no object table, values nested inline - so
// it gets its own decoder in oldbinaryplist.go rather than reusing that
// library.
func (u *Unarchiver) DecodePropertyList() (interface{}, error) {
	data, err := u.DecodeDataObject()
	if err != nil {
		return nil, err
	}
	value, err := deserializeOldBinaryPlist(data)
	if err != nil {
		return nil, fmt.Errorf("archiver: decoding embedded property list: %w", err)
	}
	return value, nil
}

// DecodeAll decodes every top-level value group in the stream.
func (u *Unarchiver) DecodeAll() ([]TypedGroup, error) {
	var groups []TypedGroup
	for {
		ev, err := u.reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		group, err := u.decodeTypedValuesFrom(ev)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// DecodeSingleRoot decodes the stream's contents, requiring that it
// contain exactly one top-level value group with exactly one value,
// and returns that value.
func (u *Unarchiver) DecodeSingleRoot() (interface{}, error) {
	groups, err := u.DecodeAll()
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("archiver: archive contains no values")
	}
	if len(groups) > 1 {
		return nil, fmt.Errorf("archiver: archive contains %d root values, expected exactly one", len(groups))
	}
	if len(groups[0].Values) != 1 {
		return nil, fmt.Errorf("archiver: archive's root value is a group of %d values, expected exactly one", len(groups[0].Values))
	}
	return groups[0].Values[0], nil
}

// UnarchiveFromBytes is a convenience wrapper equivalent to opening an
// Unarchiver over data and calling DecodeSingleRoot.
func UnarchiveFromBytes(data []byte) (interface{}, error) {
	u, err := NewUnarchiver(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer u.Close()
	return u.DecodeSingleRoot()
}
