package typedstream

import (
	"encoding/binary"
	"io"
	"math"
)

// byteReader wraps a raw byte source with positioned, endianness-aware
// primitives. It never seeks backwards - the typedstream format is a
// single forward pass - but it does track its position for diagnostics,
// the way dtx_codec tracks offsets while walking a DTXMessage.
type byteReader struct {
	r      io.Reader
	offset int64
	order  binary.ByteOrder
}

func newByteReader(r io.Reader) *byteReader {
	return &byteReader{r: r, order: binary.LittleEndian}
}

// setByteOrder is called once the stream header's byte-order marker has
// been read; every multi-byte read after that point honors it.
func (b *byteReader) setByteOrder(order binary.ByteOrder) {
	b.order = order
}

func (b *byteReader) Offset() int64 {
	return b.offset
}

// readExact reads byteCount bytes, failing with KindTruncated if the
// source runs out early.
func (b *byteReader) readExact(byteCount int) ([]byte, error) {
	buf := make([]byte, byteCount)
	n, err := io.ReadFull(b.r, buf)
	b.offset += int64(n)
	if err != nil {
		return nil, wrapError(KindTruncated, b.offset, err, "attempted to read %d bytes, got %d", byteCount, n)
	}
	return buf, nil
}

// readByte reads a single byte.
func (b *byteReader) readByte() (byte, error) {
	buf, err := b.readExact(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (b *byteReader) readUint16() (uint16, error) {
	buf, err := b.readExact(2)
	if err != nil {
		return 0, err
	}
	return b.order.Uint16(buf), nil
}

func (b *byteReader) readUint32() (uint32, error) {
	buf, err := b.readExact(4)
	if err != nil {
		return 0, err
	}
	return b.order.Uint32(buf), nil
}

func (b *byteReader) readUint64() (uint64, error) {
	buf, err := b.readExact(8)
	if err != nil {
		return 0, err
	}
	return b.order.Uint64(buf), nil
}

func (b *byteReader) readInt16() (int16, error) {
	v, err := b.readUint16()
	return int16(v), err
}

func (b *byteReader) readInt32() (int32, error) {
	v, err := b.readUint32()
	return int32(v), err
}

func (b *byteReader) readFloat32() (float32, error) {
	v, err := b.readUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (b *byteReader) readFloat64() (float64, error) {
	v, err := b.readUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}
