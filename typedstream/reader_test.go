package typedstream_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blacktop/typedstream/typedstream"
)

// nsStringSampleBytes is the canonical worked example of an archived
// NSString instance: a single root object of class NSString v1
// (superclass NSObject v0) whose sole ivar is the raw string "string
// value", stored under the "+" (unshared string) encoding.
func nsStringSampleBytes() []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0x04, 0x0B})
	buf.WriteString("streamtyped")
	buf.Write([]byte{0x81, 0xE8, 0x03})
	buf.Write([]byte{0x84, 0x01, 0x40})
	buf.Write([]byte{0x84, 0x84, 0x84, 0x08})
	buf.WriteString("NSString")
	buf.Write([]byte{0x01, 0x84, 0x84, 0x08})
	buf.WriteString("NSObject")
	buf.Write([]byte{0x00, 0x85})
	buf.Write([]byte{0x84, 0x01, 0x2B, 0x0C})
	buf.WriteString("string value")
	buf.Write([]byte{0x86})
	return buf.Bytes()
}

func TestReaderDecodesArchivedNSString(t *testing.T) {
	r, err := typedstream.NewReader(bytes.NewReader(nsStringSampleBytes()))
	require.NoError(t, err)

	assert.Equal(t, 4, r.Header.StreamerVersion)
	assert.False(t, r.Header.BigEndian)

	var got []typedstream.Event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, ev)
	}

	require.Len(t, got, 10)
	assert.IsType(t, typedstream.BeginTypedValues{}, got[0])
	assert.Equal(t, [][]byte{[]byte("@")}, got[0].(typedstream.BeginTypedValues).Encodings)
	assert.IsType(t, typedstream.BeginObject{}, got[1])
	assert.Equal(t, typedstream.SingleClass{Name: []byte("NSString"), Version: 1}, got[2])
	assert.Equal(t, typedstream.SingleClass{Name: []byte("NSObject"), Version: 0}, got[3])
	assert.Equal(t, typedstream.Nil{}, got[4])
	assert.Equal(t, [][]byte{[]byte("+")}, got[5].(typedstream.BeginTypedValues).Encodings)
	assert.Equal(t, typedstream.RawString{Data: []byte("string value")}, got[6])
	assert.Equal(t, typedstream.EndTypedValues{}, got[7])
	assert.Equal(t, typedstream.EndObject{}, got[8])
	assert.Equal(t, typedstream.EndTypedValues{}, got[9])
}

func TestReaderRejectsBadSignature(t *testing.T) {
	data := []byte{0x04, 0x0B}
	data = append(data, []byte("notavalidsig")[:11]...)
	_, err := typedstream.NewReader(bytes.NewReader(data))
	require.Error(t, err)
	assert.True(t, typedstream.IsInvalidSignature(err))
}

func TestReaderRejectsOldStreamerVersion(t *testing.T) {
	data := []byte{0x03, 0x0B}
	data = append(data, []byte("streamtyped")...)
	_, err := typedstream.NewReader(bytes.NewReader(data))
	require.Error(t, err)
	assert.True(t, typedstream.IsUnsupportedStreamerVersion(err))
}

func TestReaderRejectsTruncatedHeader(t *testing.T) {
	_, err := typedstream.NewReader(bytes.NewReader([]byte{0x04}))
	require.Error(t, err)
	assert.True(t, typedstream.IsTruncated(err))
}

func TestReaderCloseIsIdempotent(t *testing.T) {
	r, err := typedstream.NewReader(bytes.NewReader(nsStringSampleBytes()))
	require.NoError(t, err)
	r.Close()
	r.Close()
}
