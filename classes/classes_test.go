package classes_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blacktop/typedstream/archiver"
	"github.com/blacktop/typedstream/classes"
)

func init() {
	classes.SetupDecoders()
}

// header returns the fixed preamble every fixture in this file shares:
// streamer version 4, little-endian signature, system version 1000.
func header() []byte {
	var buf bytes.Buffer
	buf.WriteByte(0x04)
	buf.WriteByte(0x0B)
	buf.WriteString("streamtyped")
	buf.Write([]byte{0x81, 0xE8, 0x03})
	return buf.Bytes()
}

func newSharedString(s string) []byte {
	return append([]byte{0x84, byte(len(s))}, []byte(s)...)
}

func nsStringSampleBytes() []byte {
	var buf bytes.Buffer
	buf.Write(header())
	buf.Write(newSharedString("@"))
	buf.WriteByte(0x84) // BeginObject
	buf.WriteByte(0x84) // new class
	buf.Write(newSharedString("NSString"))
	buf.WriteByte(0x01) // version 1
	buf.WriteByte(0x84) // new class
	buf.Write(newSharedString("NSObject"))
	buf.WriteByte(0x00) // version 0
	buf.WriteByte(0x85) // Nil: end of class chain
	buf.Write(newSharedString("+"))
	buf.WriteByte(0x0C) // length 12
	buf.WriteString("string value")
	buf.WriteByte(0x86) // EndOfObject
	return buf.Bytes()
}

func nsDataSampleBytes(className string, mutableVersion *byte) []byte {
	var buf bytes.Buffer
	buf.Write(header())
	buf.Write(newSharedString("@"))
	buf.WriteByte(0x84) // BeginObject
	if mutableVersion != nil {
		buf.WriteByte(0x84) // new class
		buf.Write(newSharedString(className))
		buf.WriteByte(*mutableVersion)
	}
	buf.WriteByte(0x84) // new class
	buf.Write(newSharedString("NSData"))
	buf.WriteByte(0x00) // version 0
	buf.WriteByte(0x84) // new class
	buf.Write(newSharedString("NSObject"))
	buf.WriteByte(0x00) // version 0
	buf.WriteByte(0x85) // Nil: end of class chain
	buf.Write(newSharedString("i"))
	buf.WriteByte(0x04) // length 4
	buf.Write(newSharedString("[4c]"))
	buf.Write([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	buf.WriteByte(0x86) // EndOfObject
	return buf.Bytes()
}

func TestNSStringDecodesToRegisteredType(t *testing.T) {
	value, err := archiver.UnarchiveFromBytes(nsStringSampleBytes())
	require.NoError(t, err)
	str, ok := value.(*classes.NSString)
	require.True(t, ok, "expected *classes.NSString, got %T", value)
	assert.Equal(t, "string value", str.Value)
}

func TestNSDataDecodesLengthPrefixedBytes(t *testing.T) {
	value, err := archiver.UnarchiveFromBytes(nsDataSampleBytes("NSData", nil))
	require.NoError(t, err)
	data, ok := value.(*classes.NSData)
	require.True(t, ok, "expected *classes.NSData, got %T", value)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, data.Data)
}

func TestNSMutableDataDelegatesToNSDataLayout(t *testing.T) {
	version := byte(0x00)
	value, err := archiver.UnarchiveFromBytes(nsDataSampleBytes("NSMutableData", &version))
	require.NoError(t, err)
	data, ok := value.(*classes.NSMutableData)
	require.True(t, ok, "expected *classes.NSMutableData, got %T", value)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, data.Data)
}

func TestNSObjectRejectsUnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(header())
	buf.Write(newSharedString("@"))
	buf.WriteByte(0x84) // BeginObject
	buf.WriteByte(0x84) // new class
	buf.Write(newSharedString("NSObject"))
	buf.WriteByte(0x01) // version 1: unsupported
	buf.WriteByte(0x85) // Nil: end of class chain
	buf.WriteByte(0x86) // EndOfObject

	_, err := archiver.UnarchiveFromBytes(buf.Bytes())
	assert.Error(t, err)
}
