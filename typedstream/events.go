package typedstream

// Event is one item pulled off a stream reader. The reader exposes a
// flat, forward-only sequence of these: structural markers bracketing
// groups (typed-value groups, objects, arrays, structs) interleaved
// with the decoded leaf values themselves. Callers type-switch on the
// concrete type to interpret each one, the same way the format's
// original implementation walks a flat sequence of mixed dataclasses
// and primitive values.
type Event interface {
	isEvent()
}

// Header holds the streamer version and byte order parsed from the
// stream's preamble. NewReader parses it and stores it in
// Reader.Header; Next never returns a Header. It implements Event only
// for symmetry with the other event types.
type Header struct {
	StreamerVersion int
	BigEndian       bool
}

// BeginTypedValues opens a group of one or more values that all share
// the type-encoding list in Encodings. A single group commonly holds
// one value, but the format allows several values of the same shape to
// be packed together, most often the ivars of one object.
type BeginTypedValues struct {
	Encodings [][]byte
}

// EndTypedValues closes the most recently opened BeginTypedValues
// group.
type EndTypedValues struct{}

// Value is a decoded leaf scalar: an integer, float, or double read
// according to the encoding it appeared under. Data holds an int64,
// uint64, float32, or float64 depending on Encoding's signedness and
// width.
type Value struct {
	Encoding byte
	Data     interface{}
}

// ReferenceType distinguishes which namespace an ObjectReference
// points into.
type ReferenceType int

const (
	ReferenceCString ReferenceType = iota
	ReferenceClass
	ReferenceObject
)

func (t ReferenceType) String() string {
	switch t {
	case ReferenceCString:
		return "c-string"
	case ReferenceClass:
		return "class"
	case ReferenceObject:
		return "object"
	default:
		return "unknown"
	}
}

// ObjectReference is a back-reference to a value that was already
// fully decoded earlier in the stream (a "new" occurrence assigned the
// same id in the same namespace). Resolving it is the reference
// table's job; the stream reader only reports the raw id.
type ObjectReference struct {
	Type ReferenceType
	ID   int64
}

// CString is a shared, interned C string (encoding * or %). A nil C
// string on the wire is reported as a Nil event, not as a CString.
type CString struct {
	Data []byte
	Atom bool
}

// RawString is an unshared string (encoding +): its bytes are never
// entered into the c-string reference table, so two identical raw
// strings in the same stream are stored, and reported, independently.
type RawString struct {
	Data []byte
}

// Selector is a shared C string used as an Objective-C selector
// (encoding :). Data is nil when the wire value was the nil marker.
type Selector struct {
	Data []byte
}

// SingleClass is one link in a class's inheritance chain: a name and
// version, optionally followed (further down the chain) by its
// superclass. The stream lists these most-derived first.
type SingleClass struct {
	Name    []byte
	Version int
}

// BeginObject opens an archived object: a class chain (a sequence of
// SingleClass and/or ObjectReference{Type: ReferenceClass} events)
// followed by that object's ivar values, and closed by EndObject.
type BeginObject struct{}

// EndObject closes the most recently opened BeginObject.
type EndObject struct{}

// Nil marks an explicit nil in a context that could otherwise hold an
// object, class, or C string reference.
type Nil struct{}

// BeginArray opens a fixed-length homogeneous array of Length elements.
type BeginArray struct {
	Length int
}

// EndArray closes the most recently opened BeginArray.
type EndArray struct{}

// BeginStruct opens a named, ordered aggregate.
type BeginStruct struct {
	Name []byte
}

// EndStruct closes the most recently opened BeginStruct.
type EndStruct struct{}

// ByteArray is the fast-path representation of a fixed-length array of
// C/c elements: rather than emitting Length individual Value events,
// the reader reads the whole run of raw bytes at once and reports it as
// a single blob.
type ByteArray struct {
	Data []byte
}

func (Header) isEvent()           {}
func (BeginTypedValues) isEvent() {}
func (EndTypedValues) isEvent()   {}
func (Value) isEvent()            {}
func (ObjectReference) isEvent()  {}
func (CString) isEvent()          {}
func (RawString) isEvent()        {}
func (Selector) isEvent()         {}
func (SingleClass) isEvent()      {}
func (BeginObject) isEvent()      {}
func (EndObject) isEvent()        {}
func (Nil) isEvent()              {}
func (BeginArray) isEvent()       {}
func (EndArray) isEvent()         {}
func (BeginStruct) isEvent()      {}
func (EndStruct) isEvent()        {}
func (ByteArray) isEvent()        {}
