package typedstream

import log "github.com/sirupsen/logrus"

// Head-byte tag constants. A head byte is a single signed byte that
// either directly encodes a small integer literal, or is one of the
// reserved tags below indicating that a wider value (or a special
// marker) follows. The tag range is deliberately placed at the very
// bottom of the signed byte range so that the vast majority of small
// integers - the common case - can be stored as a single literal byte.
const (
	firstTag = -128
	lastTag  = -111

	tagInteger2      = -127
	tagInteger4      = -126
	tagFloatingPoint = -125
	tagNew           = -124
	tagNil           = -123
	tagEndOfObject   = -122

	// firstReferenceNumber is one past the last reserved tag: reference
	// numbers are literal head-byte-encoded integers starting here, so
	// that the smallest reference numbers can also fit a single byte.
	firstReferenceNumber = lastTag + 1
)

func inTagRange(head int) bool {
	return head >= firstTag && head <= lastTag
}

// decodeReferenceNumber converts a reference number as it appears on
// the wire into a zero-based index into the relevant namespace's table.
func decodeReferenceNumber(encoded int64) int64 {
	return encoded - firstReferenceNumber
}

// headByteCodec decodes the head-byte scheme that underlies every
// scalar and reference in a typedstream: a single byte that is either a
// literal small integer or a tag introducing a wider encoding.
type headByteCodec struct {
	br *byteReader
}

func newHeadByteCodec(br *byteReader) *headByteCodec {
	return &headByteCodec{br: br}
}

// readHeadByte reads the next head byte from the stream, or - if head
// is non-nil - returns the already-read value without consuming
// anything. This mirrors the lookahead parameter threaded through the
// original reader: callers that need to peek a head byte to decide
// what to do next can hand it back in without a second read.
func (h *headByteCodec) readHeadByte(head *int) (int, error) {
	if head != nil {
		return *head, nil
	}
	b, err := h.br.readByte()
	if err != nil {
		return 0, err
	}
	log.Tracef("typedstream: head byte %d (%#x) at offset %d", int8(b), b, h.br.Offset()-1)
	return int(int8(b)), nil
}

// readInteger reads a low-level integer value: a literal in the head
// byte itself, or a 2- or 4-byte extension introduced by tagInteger2 /
// tagInteger4.
func (h *headByteCodec) readInteger(head *int, signed bool) (int64, error) {
	hv, err := h.readHeadByte(head)
	if err != nil {
		return 0, err
	}
	if !inTagRange(hv) {
		if signed {
			return int64(hv), nil
		}
		return int64(hv & 0xff), nil
	}
	switch hv {
	case tagInteger2:
		v, err := h.br.readInt16()
		if err != nil {
			return 0, err
		}
		if signed {
			return int64(v), nil
		}
		return int64(uint16(v)), nil
	case tagInteger4:
		v, err := h.br.readInt32()
		if err != nil {
			return 0, err
		}
		if signed {
			return int64(v), nil
		}
		return int64(uint32(v)), nil
	default:
		return 0, newError(KindMalformedHead, h.br.Offset(), "invalid head tag in integer context: %d (%#x)", hv, uint8(hv))
	}
}

// readFloat32 reads a single-precision float, or - if the head byte
// doesn't announce a float - falls back to reading an integer and
// widening it, since the writer is free to store an exact whole-number
// float as a plain integer literal.
func (h *headByteCodec) readFloat32(head *int) (float32, error) {
	hv, err := h.readHeadByte(head)
	if err != nil {
		return 0, err
	}
	if hv == tagFloatingPoint {
		return h.br.readFloat32()
	}
	i, err := h.readInteger(&hv, true)
	if err != nil {
		return 0, err
	}
	return float32(i), nil
}

// readFloat64 is the double-precision counterpart of readFloat32.
func (h *headByteCodec) readFloat64(head *int) (float64, error) {
	hv, err := h.readHeadByte(head)
	if err != nil {
		return 0, err
	}
	if hv == tagFloatingPoint {
		return h.br.readFloat64()
	}
	i, err := h.readInteger(&hv, true)
	if err != nil {
		return 0, err
	}
	return float64(i), nil
}
