package typedstream

import (
	"bytes"
	"strconv"
)

// EncodingKind classifies a parsed type descriptor.
type EncodingKind int

const (
	// KindScalar covers every single-character numeric/char encoding
	// (c, C, s, S, i, I, l, L, q, Q, f, d).
	KindScalar EncodingKind = iota
	// KindCString is the shared, possibly-nil C string encoding (*),
	// and its lesser-known sibling %, an "atom" (a deduplicated C
	// string) that the original NeXTSTEP runtime also emits.
	KindCString
	// KindRawString is the unshared string encoding (+): unlike *, its
	// contents are never interned into the c-string reference table.
	KindRawString
	// KindObject is the shared, nil-permitted object encoding (@).
	KindObject
	// KindClass is the shared class encoding (#).
	KindClass
	// KindSelector is the selector encoding (:), coded on the wire
	// exactly like a shared C string.
	KindSelector
	// KindArray is a fixed-length homogeneous array ([NT]).
	KindArray
	// KindStruct is a named, ordered aggregate ({NAME=T1T2...}).
	KindStruct
	// KindUnion is a named aggregate whose arms overlap in storage
	// ((NAME=T1T2...)).
	KindUnion
	// KindBitfield is a bitfield of a fixed width (bN).
	KindBitfield
	// KindPointer is a pointer to another encoding (^T).
	KindPointer
	// KindUnknown is any single-character code this parser doesn't
	// otherwise recognize (including the function-pointer sentinel ?).
	// It is preserved verbatim rather than rejected; whether it can be
	// decoded is a question for the unarchiver, not the parser.
	KindUnknown
)

// TypeDescriptor is one node of the tree produced by parsing an
// Objective-C type-encoding string. Compound encodings (arrays,
// structs, unions, pointers) nest further descriptors.
type TypeDescriptor struct {
	Kind     EncodingKind
	Code     byte // the encoding character itself, for scalar/unknown
	Name     []byte
	Length   int // array length, or bitfield width
	Element  *TypeDescriptor
	Fields   []*TypeDescriptor
}

// AnonymousStructName is the sentinel struct/union name meaning "no
// name given"; it compares equal to any name during type matching.
const AnonymousStructName = "?"

// endOfEncoding finds the end index of the single encoding starting at
// start, without validating it beyond balancing the three kinds of
// brackets. Ported from the paren-depth walk in the original
// implementation's _end_of_encoding, which in turn credits rubicon-objc.
func endOfEncoding(encoding []byte, start int) (int, error) {
	if start < 0 || start >= len(encoding) {
		return 0, newError(KindBadTypeEncoding, int64(start), "start index %d not in range(%d)", start, len(encoding))
	}

	depth := 0
	i := start
	for i < len(encoding) {
		c := encoding[i]
		switch {
		case c == '(' || c == '[' || c == '{':
			depth++
			i++
		case depth > 0:
			if c == ')' || c == ']' || c == '}' {
				depth--
			}
			i++
			if depth == 0 {
				return i, nil
			}
		default:
			return i + 1, nil
		}
	}

	if depth > 0 {
		return 0, newError(KindBadTypeEncoding, int64(start), "incomplete encoding, missing %d closing brackets: %q", depth, encoding)
	}
	return 0, newError(KindBadTypeEncoding, int64(start), "incomplete encoding, reached end of string too early: %q", encoding)
}

// SplitEncodings splits a byte string containing several concatenated
// type encodings (as found in a BeginTypedValues group) into its
// individual encodings.
func SplitEncodings(encodings []byte) ([][]byte, error) {
	var result [][]byte
	start := 0
	for start < len(encodings) {
		end, err := endOfEncoding(encodings, start)
		if err != nil {
			return nil, err
		}
		result = append(result, encodings[start:end])
		start = end
	}
	return result, nil
}

// ParseTypeEncoding parses exactly one type encoding starting at the
// beginning of data and returns the descriptor tree plus the number of
// bytes consumed. Compound encodings are parsed recursively.
func ParseTypeEncoding(data []byte) (*TypeDescriptor, int, error) {
	if len(data) == 0 {
		return nil, 0, newError(KindBadTypeEncoding, 0, "empty type encoding")
	}

	switch c := data[0]; c {
	case 'c', 'C', 's', 'S', 'i', 'I', 'l', 'L', 'q', 'Q', 'f', 'd':
		return &TypeDescriptor{Kind: KindScalar, Code: c}, 1, nil
	case '*', '%':
		return &TypeDescriptor{Kind: KindCString, Code: c}, 1, nil
	case '+':
		return &TypeDescriptor{Kind: KindRawString, Code: c}, 1, nil
	case '@':
		return &TypeDescriptor{Kind: KindObject, Code: c}, 1, nil
	case '#':
		return &TypeDescriptor{Kind: KindClass, Code: c}, 1, nil
	case ':':
		return &TypeDescriptor{Kind: KindSelector, Code: c}, 1, nil
	case '^':
		elem, n, err := ParseTypeEncoding(data[1:])
		if err != nil {
			return nil, 0, err
		}
		return &TypeDescriptor{Kind: KindPointer, Code: c, Element: elem}, n + 1, nil
	case 'b':
		i := 1
		for i < len(data) && data[i] >= '0' && data[i] <= '9' {
			i++
		}
		if i == 1 {
			return nil, 0, newError(KindBadTypeEncoding, 0, "missing bit count in bitfield encoding: %q", data)
		}
		width, err := strconv.Atoi(string(data[1:i]))
		if err != nil {
			return nil, 0, wrapError(KindBadTypeEncoding, 0, err, "invalid bitfield width in %q", data)
		}
		return &TypeDescriptor{Kind: KindBitfield, Code: c, Length: width}, i, nil
	case '[':
		return parseArrayEncoding(data)
	case '{':
		return parseAggregateEncoding(data, '{', '}', KindStruct)
	case '(':
		return parseAggregateEncoding(data, '(', ')', KindUnion)
	default:
		return &TypeDescriptor{Kind: KindUnknown, Code: c}, 1, nil
	}
}

func parseArrayEncoding(data []byte) (*TypeDescriptor, int, error) {
	end, err := endOfEncoding(data, 0)
	if err != nil {
		return nil, 0, err
	}
	if data[end-1] != ']' {
		return nil, 0, newError(KindBadTypeEncoding, 0, "missing closing bracket in array type encoding: %q", data[:end])
	}

	i := 1
	for i < end-1 && data[i] >= '0' && data[i] <= '9' {
		i++
	}
	if i == 1 {
		return nil, 0, newError(KindBadTypeEncoding, 0, "missing length in array type encoding: %q", data[:end])
	}
	length, err := strconv.Atoi(string(data[1:i]))
	if err != nil {
		return nil, 0, wrapError(KindBadTypeEncoding, 0, err, "invalid array length in %q", data[:end])
	}

	elementBytes := data[i : end-1]
	if len(elementBytes) == 0 {
		return nil, 0, newError(KindBadTypeEncoding, 0, "missing element type in array type encoding: %q", data[:end])
	}
	element, consumed, err := ParseTypeEncoding(elementBytes)
	if err != nil {
		return nil, 0, err
	}
	if consumed != len(elementBytes) {
		return nil, 0, newError(KindBadTypeEncoding, 0, "trailing garbage in array element encoding: %q", elementBytes)
	}

	return &TypeDescriptor{Kind: KindArray, Code: '[', Length: length, Element: element}, end, nil
}

func parseAggregateEncoding(data []byte, open, close byte, kind EncodingKind) (*TypeDescriptor, int, error) {
	end, err := endOfEncoding(data, 0)
	if err != nil {
		return nil, 0, err
	}
	if data[0] != open || data[end-1] != close {
		return nil, 0, newError(KindBadTypeEncoding, 0, "malformed aggregate encoding: %q", data[:end])
	}

	body := data[1 : end-1]
	equals := bytes.IndexByte(body, '=')
	if equals < 0 {
		return nil, 0, newError(KindBadTypeEncoding, 0, "missing name in aggregate type encoding: %q", data[:end])
	}
	name := append([]byte(nil), body[:equals]...)

	fieldEncodings, err := SplitEncodings(body[equals+1:])
	if err != nil {
		return nil, 0, err
	}
	fields := make([]*TypeDescriptor, len(fieldEncodings))
	for i, fe := range fieldEncodings {
		field, consumed, err := ParseTypeEncoding(fe)
		if err != nil {
			return nil, 0, err
		}
		if consumed != len(fe) {
			return nil, 0, newError(KindBadTypeEncoding, 0, "trailing garbage in field encoding: %q", fe)
		}
		fields[i] = field
	}

	return &TypeDescriptor{Kind: kind, Code: open, Name: name, Fields: fields}, end, nil
}

// Encoding reconstructs the byte string this descriptor was parsed
// from. Anonymous struct/union names round-trip as "?".
func (t *TypeDescriptor) Encoding() []byte {
	switch t.Kind {
	case KindScalar, KindCString, KindRawString, KindObject, KindClass, KindSelector, KindUnknown:
		return []byte{t.Code}
	case KindPointer:
		return append([]byte{'^'}, t.Element.Encoding()...)
	case KindBitfield:
		return []byte("b" + strconv.Itoa(t.Length))
	case KindArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		buf.WriteString(strconv.Itoa(t.Length))
		buf.Write(t.Element.Encoding())
		buf.WriteByte(']')
		return buf.Bytes()
	case KindStruct, KindUnion:
		open, closeB := byte('{'), byte('}')
		if t.Kind == KindUnion {
			open, closeB = '(', ')'
		}
		var buf bytes.Buffer
		buf.WriteByte(open)
		name := t.Name
		if len(name) == 0 {
			name = []byte(AnonymousStructName)
		}
		buf.Write(name)
		buf.WriteByte('=')
		for _, f := range t.Fields {
			buf.Write(f.Encoding())
		}
		buf.WriteByte(closeB)
		return buf.Bytes()
	default:
		return nil
	}
}

// Matches reports whether t is compatible with expected under the
// unarchiver's type-compatibility rule: encodings must agree exactly,
// recursively, except that an anonymous struct/union name ("?") on
// either side matches any name on the other.
func (t *TypeDescriptor) Matches(expected *TypeDescriptor) bool {
	if t == nil || expected == nil {
		return t == expected
	}
	if t.Kind != expected.Kind {
		return false
	}
	switch t.Kind {
	case KindScalar, KindCString, KindRawString, KindObject, KindClass, KindSelector, KindUnknown:
		return t.Code == expected.Code
	case KindPointer:
		return t.Element.Matches(expected.Element)
	case KindBitfield:
		return t.Length == expected.Length
	case KindArray:
		return t.Length == expected.Length && t.Element.Matches(expected.Element)
	case KindStruct, KindUnion:
		if !structNamesMatch(t.Name, expected.Name) {
			return false
		}
		if len(t.Fields) != len(expected.Fields) {
			return false
		}
		for i := range t.Fields {
			if !t.Fields[i].Matches(expected.Fields[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func structNamesMatch(a, b []byte) bool {
	if string(a) == AnonymousStructName || string(b) == AnonymousStructName {
		return true
	}
	return bytes.Equal(a, b)
}

// AllEncodingsMatch reports whether every encoding in actual is
// type-compatible with the corresponding encoding in expected.
func AllEncodingsMatch(actual, expected [][]byte) bool {
	if len(actual) != len(expected) {
		return false
	}
	for i := range actual {
		at, aConsumed, err := ParseTypeEncoding(actual[i])
		if err != nil || aConsumed != len(actual[i]) {
			return false
		}
		et, eConsumed, err := ParseTypeEncoding(expected[i])
		if err != nil || eConsumed != len(expected[i]) {
			return false
		}
		if !at.Matches(et) {
			return false
		}
	}
	return true
}
