package typedstream

import (
	"bytes"
	"encoding/binary"
	"io"

	log "github.com/sirupsen/logrus"
)

// Signature strings identifying byte order. Both are the same length;
// the little-endian one is the big-endian one with its two words
// swapped, which is a coincidence of the words chosen, not a property
// the reader relies on.
var (
	signatureBigEndian    = []byte("typedstream")
	signatureLittleEndian = []byte("streamtyped")
)

const (
	streamerVersionOldNextstep = 3
	streamerVersionCurrent     = 4
)

// eofSentinel is returned internally to signal a clean end of stream at
// a typed-value-group boundary. It never escapes the package.
type eofSentinel struct{}

func (eofSentinel) Error() string { return "end of typedstream reached" }

type eventOrErr struct {
	event Event
	err   error
}

// Reader turns a raw byte stream into a forward-only sequence of
// Events. It does no interpretation of classes or objects beyond
// tracking reference numbers - that's the archiver's job, layered on
// top of this one exactly the way the format itself layers a
// class-and-object model over a flat, untyped event stream.
type Reader struct {
	Header  Header
	log     *log.Entry
	events  chan eventOrErr
	stop    chan struct{}
	stopped bool
}

// NewReader validates the typedstream header and returns a Reader
// ready to be pulled from with Next. The header is consumed
// immediately so that an invalid signature or unsupported streamer
// version is reported before the caller reads a single event.
func NewReader(r io.Reader) (*Reader, error) {
	br := newByteReader(r)
	header, err := readHeader(br)
	if err != nil {
		return nil, err
	}

	rd := &Reader{
		Header: header,
		log:    log.WithField("component", "typedstream.Reader"),
		events: make(chan eventOrErr),
		stop:   make(chan struct{}),
	}
	rd.log.Debugf("parsed header: streamer version %d, big endian %v", header.StreamerVersion, header.BigEndian)
	run := &runner{
		br:     br,
		hb:     newHeadByteCodec(br),
		names:  newReferenceTable(namespaceSharedString),
		events: rd.events,
		stop:   rd.stop,
	}
	go run.main()
	return rd, nil
}

// readHeader reads and validates the fixed-format preamble: a raw
// version byte, a raw signature-length byte, the signature itself (which
// selects byte order), and a head-byte-encoded system version integer.
func readHeader(br *byteReader) (Header, error) {
	prefix, err := br.readExact(2)
	if err != nil {
		return Header{}, err
	}
	version, signatureLength := int(prefix[0]), int(prefix[1])

	if version < streamerVersionOldNextstep || version > streamerVersionCurrent {
		return Header{}, newError(KindUnsupportedStreamerVersion, br.Offset(), "invalid streamer version: %d", version)
	}
	if version == streamerVersionOldNextstep {
		return Header{}, newError(KindUnsupportedStreamerVersion, br.Offset(), "old NeXTSTEP streamer version (%d) is not supported", version)
	}

	if signatureLength != len(signatureBigEndian) {
		return Header{}, newError(KindInvalidSignature, br.Offset(), "signature must be %d bytes, not %d", len(signatureBigEndian), signatureLength)
	}
	signature, err := br.readExact(signatureLength)
	if err != nil {
		return Header{}, err
	}

	var bigEndian bool
	switch {
	case bytes.Equal(signature, signatureBigEndian):
		bigEndian = true
	case bytes.Equal(signature, signatureLittleEndian):
		bigEndian = false
	default:
		return Header{}, newError(KindInvalidSignature, br.Offset(), "unrecognized signature %q", signature)
	}
	if bigEndian {
		br.setByteOrder(binary.BigEndian)
	}

	hb := newHeadByteCodec(br)
	if _, err := hb.readInteger(nil, false); err != nil {
		return Header{}, err
	}

	return Header{StreamerVersion: version, BigEndian: bigEndian}, nil
}

// Next returns the next event in the stream, or io.EOF once the
// stream is exhausted. Once Next returns an error it must not be
// called again.
func (r *Reader) Next() (Event, error) {
	item, ok := <-r.events
	if !ok {
		return nil, io.EOF
	}
	if item.err != nil {
		if _, isEOF := item.err.(eofSentinel); isEOF {
			return nil, io.EOF
		}
		return nil, item.err
	}
	return item.event, nil
}

// Close abandons the reader. It is only necessary to call this if the
// caller stops pulling events before reaching io.EOF; otherwise the
// producing goroutine exits on its own once the stream is drained.
func (r *Reader) Close() {
	if r.stopped {
		return
	}
	r.stopped = true
	close(r.stop)
	for range r.events {
	}
}

// runner drives the actual recursive descent over the byte stream,
// translating what the format's original implementation expresses as a
// tree of nested generators into an explicit call stack that sends
// each event to the reader's channel as it is produced.
type runner struct {
	br     *byteReader
	hb     *headByteCodec
	names  *referenceTable
	events chan eventOrErr
	stop   chan struct{}
}

func (r *runner) main() {
	defer close(r.events)
	for {
		if err := r.readTypedValues(nil, true); err != nil {
			if _, isEOF := err.(eofSentinel); isEOF {
				return
			}
			r.sendErr(err)
			return
		}
	}
}

// send delivers an event to the consumer, or reports false if the
// reader was closed early.
func (r *runner) send(e Event) bool {
	select {
	case r.events <- eventOrErr{event: e}:
		return true
	case <-r.stop:
		return false
	}
}

func (r *runner) sendErr(err error) {
	select {
	case r.events <- eventOrErr{err: err}:
	case <-r.stop:
	}
}

// errStopped is a private sentinel used to unwind the recursion when
// the consumer has closed the reader early; it is never sent as an event.
type errStopped struct{}

func (errStopped) Error() string { return "typedstream: reader closed" }

func (r *runner) checkSend(e Event) error {
	if !r.send(e) {
		return errStopped{}
	}
	return nil
}

func (r *runner) readUnsharedString(head *int) ([]byte, error) {
	hv, err := r.hb.readHeadByte(head)
	if err != nil {
		return nil, err
	}
	if hv == tagNil {
		return nil, nil
	}
	length, err := r.hb.readInteger(&hv, false)
	if err != nil {
		return nil, err
	}
	return r.br.readExact(int(length))
}

func (r *runner) readSharedString(head *int) ([]byte, error) {
	hv, err := r.hb.readHeadByte(head)
	if err != nil {
		return nil, err
	}
	switch hv {
	case tagNil:
		return nil, nil
	case tagNew:
		s, err := r.readUnsharedString(nil)
		if err != nil {
			return nil, err
		}
		if s == nil {
			return nil, newError(KindMalformedHead, r.br.Offset(), "literal shared string cannot contain a nil unshared string")
		}
		r.names.intern(s)
		return s, nil
	default:
		refNum, err := r.hb.readInteger(&hv, true)
		if err != nil {
			return nil, err
		}
		v, err := r.names.resolve(decodeReferenceNumber(refNum))
		if err != nil {
			if tsErr, ok := err.(*Error); ok {
				tsErr.Offset = r.br.Offset()
			}
			return nil, err
		}
		return v.([]byte), nil
	}
}

func (r *runner) readObjectReference(refType ReferenceType, head *int) (ObjectReference, error) {
	refNum, err := r.hb.readInteger(head, true)
	if err != nil {
		return ObjectReference{}, err
	}
	return ObjectReference{Type: refType, ID: decodeReferenceNumber(refNum)}, nil
}

func (r *runner) readCString(head *int, atom bool) (Event, error) {
	hv, err := r.hb.readHeadByte(head)
	if err != nil {
		return nil, err
	}
	switch hv {
	case tagNil:
		return Nil{}, nil
	case tagNew:
		s, err := r.readSharedString(nil)
		if err != nil {
			return nil, err
		}
		if s == nil {
			return nil, newError(KindMalformedHead, r.br.Offset(), "literal C string cannot contain a nil shared string")
		}
		if bytes.IndexByte(s, 0) >= 0 {
			return nil, newError(KindValueOutOfRange, r.br.Offset(), "C string value cannot contain zero bytes")
		}
		return CString{Data: s, Atom: atom}, nil
	default:
		ref, err := r.readObjectReference(ReferenceCString, &hv)
		if err != nil {
			return nil, err
		}
		return ref, nil
	}
}

// readClass sends the class chain rooted at head: zero or more
// SingleClass events (most-derived first), terminated by either a Nil
// (root class reached) or an ObjectReference to an earlier class.
func (r *runner) readClass(head *int) error {
	hv, err := r.hb.readHeadByte(head)
	if err != nil {
		return err
	}
	for hv == tagNew {
		name, err := r.readSharedString(nil)
		if err != nil {
			return err
		}
		if name == nil {
			return newError(KindMalformedHead, r.br.Offset(), "class name cannot be nil")
		}
		version, err := r.hb.readInteger(nil, true)
		if err != nil {
			return err
		}
		if err := r.checkSend(SingleClass{Name: name, Version: int(version)}); err != nil {
			return err
		}
		hv, err = r.hb.readHeadByte(nil)
		if err != nil {
			return err
		}
	}

	if hv == tagNil {
		return r.checkSend(Nil{})
	}
	ref, err := r.readObjectReference(ReferenceClass, &hv)
	if err != nil {
		return err
	}
	return r.checkSend(ref)
}

// readObject sends BeginObject, the object's class chain, its ivar
// groups, and EndObject - or, if the head byte says nil or reference,
// just that single event.
func (r *runner) readObject(head *int) error {
	hv, err := r.hb.readHeadByte(head)
	if err != nil {
		return err
	}
	switch hv {
	case tagNil:
		return r.checkSend(Nil{})
	case tagNew:
		if err := r.checkSend(BeginObject{}); err != nil {
			return err
		}
		if err := r.readClass(nil); err != nil {
			return err
		}
		next, err := r.hb.readHeadByte(nil)
		if err != nil {
			return err
		}
		for next != tagEndOfObject {
			if err := r.readTypedValues(&next, false); err != nil {
				return err
			}
			next, err = r.hb.readHeadByte(nil)
			if err != nil {
				return err
			}
		}
		return r.checkSend(EndObject{})
	default:
		ref, err := r.readObjectReference(ReferenceObject, &hv)
		if err != nil {
			return err
		}
		return r.checkSend(ref)
	}
}

// readValueWithEncoding sends the event(s) for a single value of the
// given (already split) type encoding.
func (r *runner) readValueWithEncoding(enc *TypeDescriptor, head *int) error {
	switch enc.Kind {
	case KindScalar:
		switch enc.Code {
		case 'C':
			b, err := r.br.readByte()
			if err != nil {
				return err
			}
			return r.checkSend(Value{Encoding: enc.Code, Data: uint64(b)})
		case 'c':
			b, err := r.br.readByte()
			if err != nil {
				return err
			}
			return r.checkSend(Value{Encoding: enc.Code, Data: int64(int8(b))})
		case 'S', 'I', 'L', 'Q':
			v, err := r.hb.readInteger(head, false)
			if err != nil {
				return err
			}
			if err := checkUnsignedRange(enc.Code, v, r.br.Offset()); err != nil {
				return err
			}
			return r.checkSend(Value{Encoding: enc.Code, Data: uint64(v)})
		case 's', 'i', 'l', 'q':
			v, err := r.hb.readInteger(head, true)
			if err != nil {
				return err
			}
			if err := checkSignedRange(enc.Code, v, r.br.Offset()); err != nil {
				return err
			}
			return r.checkSend(Value{Encoding: enc.Code, Data: v})
		case 'f':
			v, err := r.hb.readFloat32(head)
			if err != nil {
				return err
			}
			return r.checkSend(Value{Encoding: enc.Code, Data: v})
		case 'd':
			v, err := r.hb.readFloat64(head)
			if err != nil {
				return err
			}
			return r.checkSend(Value{Encoding: enc.Code, Data: v})
		}
	case KindCString:
		ev, err := r.readCString(head, enc.Code == '%')
		if err != nil {
			return err
		}
		return r.checkSend(ev)
	case KindSelector:
		name, err := r.readSharedString(head)
		if err != nil {
			return err
		}
		return r.checkSend(Selector{Data: name})
	case KindRawString:
		data, err := r.readUnsharedString(head)
		if err != nil {
			return err
		}
		return r.checkSend(RawString{Data: data})
	case KindClass:
		return r.readClass(head)
	case KindObject:
		return r.readObject(head)
	case KindArray:
		if enc.Element.Kind == KindScalar && (enc.Element.Code == 'C' || enc.Element.Code == 'c') {
			data, err := r.br.readExact(enc.Length)
			if err != nil {
				return err
			}
			return r.checkSend(ByteArray{Data: data})
		}
		if err := r.checkSend(BeginArray{Length: enc.Length}); err != nil {
			return err
		}
		for i := 0; i < enc.Length; i++ {
			if err := r.readValueWithEncoding(enc.Element, nil); err != nil {
				return err
			}
		}
		return r.checkSend(EndArray{})
	case KindStruct:
		if err := r.checkSend(BeginStruct{Name: enc.Name}); err != nil {
			return err
		}
		for _, field := range enc.Fields {
			if err := r.readValueWithEncoding(field, nil); err != nil {
				return err
			}
		}
		return r.checkSend(EndStruct{})
	case KindUnion:
		// The wire format gives no indication of which arm was active
		// when the union was archived, so every arm is decoded in
		// declaration order, storage-overlap be damned. Treating a
		// union like a struct of all its arms is the only behavior
		// that doesn't silently drop data; callers that know which arm
		// matters for a given class pick it out of the resulting struct.
		if err := r.checkSend(BeginStruct{Name: enc.Name}); err != nil {
			return err
		}
		for _, field := range enc.Fields {
			if err := r.readValueWithEncoding(field, nil); err != nil {
				return err
			}
		}
		return r.checkSend(EndStruct{})
	case KindPointer:
		// A typedstream never carries a raw memory address; a pointer
		// encoding on the wire always means "the pointee follows
		// inline", so a pointer is read transparently as its element.
		return r.readValueWithEncoding(enc.Element, head)
	}
	return newError(KindUnsupportedType, r.br.Offset(), "don't know how to read a value with type encoding %q", enc.Encoding())
}

// checkUnsignedRange verifies that v, read as an unsigned integer, fits
// the bit width its declared encoding code implies. The head-byte codec
// always widens to a uint64-sized value regardless of the wire tag it
// actually saw, so a value written with tagInteger4 under a declared
// 16-bit code (S) needs an explicit check to catch it.
func checkUnsignedRange(code byte, v int64, offset int64) error {
	u := uint64(v)
	var limit uint64
	switch code {
	case 'S':
		limit = 0xFFFF
	case 'I', 'L':
		limit = 0xFFFFFFFF
	default: // 'Q' never overflows a uint64
		return nil
	}
	if u > limit {
		return newError(KindValueOutOfRange, offset, "value %d does not fit in a %q-encoded unsigned integer", u, code)
	}
	return nil
}

// checkSignedRange is checkUnsignedRange's signed counterpart.
func checkSignedRange(code byte, v int64, offset int64) error {
	var lo, hi int64
	switch code {
	case 's':
		lo, hi = -1<<15, 1<<15-1
	case 'i', 'l':
		lo, hi = -1<<31, 1<<31-1
	default: // 'q' never overflows an int64
		return nil
	}
	if v < lo || v > hi {
		return newError(KindValueOutOfRange, offset, "value %d does not fit in a %q-encoded signed integer", v, code)
	}
	return nil
}

// readTypedValues reads one BeginTypedValues/.../EndTypedValues group.
// When topLevel is true and the stream is exhausted right at the start
// of a group (not partway through one), that is a clean end of stream,
// reported as eofSentinel rather than KindTruncated.
func (r *runner) readTypedValues(head *int, topLevel bool) error {
	hv, err := r.hb.readHeadByte(head)
	if err != nil {
		if topLevel && IsTruncated(err) {
			return eofSentinel{}
		}
		return err
	}

	encodingString, err := r.readSharedString(&hv)
	if err != nil {
		return err
	}
	if encodingString == nil {
		return newError(KindBadTypeEncoding, r.br.Offset(), "encountered nil type encoding string")
	}
	if len(encodingString) == 0 {
		return newError(KindBadTypeEncoding, r.br.Offset(), "encountered empty type encoding string")
	}

	rawEncodings, err := SplitEncodings(encodingString)
	if err != nil {
		return err
	}
	descriptors := make([]*TypeDescriptor, len(rawEncodings))
	for i, raw := range rawEncodings {
		d, consumed, err := ParseTypeEncoding(raw)
		if err != nil {
			return err
		}
		if consumed != len(raw) {
			return newError(KindBadTypeEncoding, r.br.Offset(), "trailing garbage in type encoding %q", raw)
		}
		descriptors[i] = d
	}

	if err := r.checkSend(BeginTypedValues{Encodings: rawEncodings}); err != nil {
		return err
	}
	for _, d := range descriptors {
		if err := r.readValueWithEncoding(d, nil); err != nil {
			return err
		}
	}
	return r.checkSend(EndTypedValues{})
}
