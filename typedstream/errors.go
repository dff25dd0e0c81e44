package typedstream

import "fmt"

// Kind classifies a decode-time failure. The constants below list the
// full taxonomy.
type Kind int

const (
	// KindInvalidSignature means the first 13 bytes were not a
	// recognized typedstream preamble.
	KindInvalidSignature Kind = iota
	// KindUnsupportedStreamerVersion means the header's streamer
	// version was not 4.
	KindUnsupportedStreamerVersion
	// KindTruncated means the byte source ran out mid-value.
	KindTruncated
	// KindMalformedHead means a head byte was incompatible with the
	// interpretation requested of it.
	KindMalformedHead
	// KindUnknownReference means a reference id had no earlier "new"
	// occurrence in its namespace.
	KindUnknownReference
	// KindBadTypeEncoding means the type-encoding grammar was violated.
	KindBadTypeEncoding
	// KindTypeMismatch means the unarchiver's expected encoding
	// differed from the one actually present in the stream.
	KindTypeMismatch
	// KindValueOutOfRange means a numeric value didn't fit its
	// declared encoding.
	KindValueOutOfRange
	// KindUnsupportedType means the core declined to decode a value
	// of the given encoding.
	KindUnsupportedType
	// KindClassDecoderFailed wraps an error returned by a registered
	// class decoder.
	KindClassDecoderFailed
)

func (k Kind) String() string {
	switch k {
	case KindInvalidSignature:
		return "InvalidSignature"
	case KindUnsupportedStreamerVersion:
		return "UnsupportedStreamerVersion"
	case KindTruncated:
		return "Truncated"
	case KindMalformedHead:
		return "MalformedHead"
	case KindUnknownReference:
		return "UnknownReference"
	case KindBadTypeEncoding:
		return "BadTypeEncoding"
	case KindTypeMismatch:
		return "TypeMismatch"
	case KindValueOutOfRange:
		return "ValueOutOfRange"
	case KindUnsupportedType:
		return "UnsupportedType"
	case KindClassDecoderFailed:
		return "ClassDecoderFailed"
	default:
		return "Unknown"
	}
}

// Error is the error type returned for every parse-level failure in
// this package. For failures detected while reading a stream it carries
// the byte offset at which the failure was detected, so callers can
// point a user at the exact spot in the stream. Errors returned by
// ParseTypeEncoding and SplitEncodings carry an index into the encoding
// being parsed instead.
type Error struct {
	Kind    Kind
	Offset  int64
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("typedstream: %s at offset %d: %s: %v", e.Kind, e.Offset, e.Message, e.Err)
	}
	return fmt.Sprintf("typedstream: %s at offset %d: %s", e.Kind, e.Offset, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, offset int64, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Offset: offset, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, offset int64, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Offset: offset, Message: fmt.Sprintf(format, args...), Err: err}
}

func isKind(err error, kind Kind) bool {
	tsErr, ok := err.(*Error)
	return ok && tsErr.Kind == kind
}

// IsInvalidSignature reports whether err is a KindInvalidSignature Error.
func IsInvalidSignature(err error) bool { return isKind(err, KindInvalidSignature) }

// IsUnsupportedStreamerVersion reports whether err is a
// KindUnsupportedStreamerVersion Error.
func IsUnsupportedStreamerVersion(err error) bool {
	return isKind(err, KindUnsupportedStreamerVersion)
}

// IsTruncated reports whether err is a KindTruncated Error.
func IsTruncated(err error) bool { return isKind(err, KindTruncated) }

// IsMalformedHead reports whether err is a KindMalformedHead Error.
func IsMalformedHead(err error) bool { return isKind(err, KindMalformedHead) }

// IsUnknownReference reports whether err is a KindUnknownReference Error.
func IsUnknownReference(err error) bool { return isKind(err, KindUnknownReference) }

// IsBadTypeEncoding reports whether err is a KindBadTypeEncoding Error.
func IsBadTypeEncoding(err error) bool { return isKind(err, KindBadTypeEncoding) }

// IsTypeMismatch reports whether err is a KindTypeMismatch Error.
func IsTypeMismatch(err error) bool { return isKind(err, KindTypeMismatch) }

// IsValueOutOfRange reports whether err is a KindValueOutOfRange Error.
func IsValueOutOfRange(err error) bool { return isKind(err, KindValueOutOfRange) }

// IsUnsupportedType reports whether err is a KindUnsupportedType Error.
func IsUnsupportedType(err error) bool { return isKind(err, KindUnsupportedType) }

// IsClassDecoderFailed reports whether err is a KindClassDecoderFailed Error.
func IsClassDecoderFailed(err error) bool { return isKind(err, KindClassDecoderFailed) }
