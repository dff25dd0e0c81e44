package archiver

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func le32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}

// dataFrame builds the wire bytes for an old-format-plist NSData value:
// type number 4, a length prefix, the payload, and zero padding to a
// 4-byte boundary.
func dataFrame(payload []byte) []byte {
	pad := (4 - len(payload)%4) % 4
	frame := append([]byte{}, le32(4)...)
	frame = append(frame, le32(uint32(len(payload)))...)
	frame = append(frame, payload...)
	frame = append(frame, make([]byte, pad)...)
	return frame
}

// nilFrame builds the wire bytes for the old-format-plist nil value.
func nilFrame() []byte {
	return le32(8)
}

// string8BitFrame builds an old-format-plist NSString value stored in
// the NeXTSTEP 8-bit character set, valid for plain ASCII input.
func string8BitFrame(s string) []byte {
	pad := (4 - len(s)%4) % 4
	frame := append([]byte{}, le32(5)...)
	frame = append(frame, le32(uint32(len(s)))...)
	frame = append(frame, []byte(s)...)
	frame = append(frame, make([]byte, pad)...)
	return frame
}

// stringUTF16Frame builds an old-format-plist NSString value stored as
// little-endian UTF-16 with a leading byte-order mark.
func stringUTF16Frame(s string) []byte {
	payload := []byte{0xFF, 0xFE}
	for _, r := range s {
		payload = append(payload, byte(r), 0)
	}
	pad := (4 - len(payload)%4) % 4
	frame := append([]byte{}, le32(6)...)
	frame = append(frame, le32(uint32(len(payload)))...)
	frame = append(frame, payload...)
	frame = append(frame, make([]byte, pad)...)
	return frame
}

func collectionFrame(typeNumber uint32, keys [][]byte, values [][]byte) []byte {
	frame := append([]byte{}, le32(typeNumber)...)
	frame = append(frame, le32(uint32(len(values)))...)
	for _, k := range keys {
		frame = append(frame, k...)
	}
	for _, v := range values {
		frame = append(frame, le32(uint32(len(v)))...)
	}
	for _, v := range values {
		frame = append(frame, v...)
	}
	return frame
}

func TestDeserializeOldBinaryPlistNil(t *testing.T) {
	value, err := deserializeOldBinaryPlist(nilFrame())
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestDeserializeOldBinaryPlistData(t *testing.T) {
	value, err := deserializeOldBinaryPlist(dataFrame([]byte("abc")))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), value)
}

func TestDeserializeOldBinaryPlistNextstep8BitString(t *testing.T) {
	value, err := deserializeOldBinaryPlist(string8BitFrame("hi there"))
	require.NoError(t, err)
	assert.Equal(t, "hi there", value)
}

func TestDeserializeOldBinaryPlistUTF16String(t *testing.T) {
	value, err := deserializeOldBinaryPlist(stringUTF16Frame("hi"))
	require.NoError(t, err)
	assert.Equal(t, "hi", value)
}

func TestDeserializeOldBinaryPlistArray(t *testing.T) {
	elements := [][]byte{nilFrame(), dataFrame([]byte("a"))}
	value, err := deserializeOldBinaryPlist(collectionFrame(2, nil, elements))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{nil, []byte("a")}, value)
}

func TestDeserializeOldBinaryPlistDictionary(t *testing.T) {
	keys := [][]byte{string8BitFrame("k")}
	values := [][]byte{nilFrame()}
	value, err := deserializeOldBinaryPlist(collectionFrame(7, keys, values))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"k": nil}, value)
}

func TestDeserializeOldBinaryPlistRejectsTrailingBytes(t *testing.T) {
	data := append(nilFrame(), 0xFF)
	_, err := deserializeOldBinaryPlist(data)
	require.Error(t, err)
}

func TestDeserializeOldBinaryPlistRejectsLengthMismatch(t *testing.T) {
	frame := collectionFrame(2, nil, [][]byte{nilFrame()})
	// Corrupt the declared element length so it disagrees with the
	// actual encoded value.
	frame[8] = 99
	_, err := deserializeOldBinaryPlist(frame)
	require.Error(t, err)
}

func TestDeserializeOldBinaryPlistRejectsUnknownTypeNumber(t *testing.T) {
	_, err := deserializeOldBinaryPlist(le32(42))
	require.Error(t, err)
}
