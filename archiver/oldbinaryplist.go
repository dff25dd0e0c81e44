package archiver

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf16"
)

// nextstep8BitCharacterMap is the NeXTSTEP 8-bit character set mapped to
// Unicode, byte value 0x00 through 0xFD; bytes 0xFE and 0xFF are
// unassigned. Ported verbatim from the table old_binary_plist.py built
// by decoding bytes 1-253 as NSNEXTSTEPStringEncoding under Foundation.
const nextstep8BitCharacterMap = "\x00\x01\x02\x03\x04\x05\x06\x07\x08\t\n\x0b\x0c\r\x0e\x0f" +
	"\x10\x11\x12\x13\x14\x15\x16\x17\x18\x19\x1a\x1b\x1c\x1d\x1e\x1f" +
	" !\"#$%&'()*+,-./" +
	"0123456789:;<=>?" +
	"@ABCDEFGHIJKLMNO" +
	"PQRSTUVWXYZ[\\]^_" +
	"`abcdefghijklmno" +
	"pqrstuvwxyz{|}~\x7f" +
	" ÀÁÂÃÄÅÇÈÉÊËÌÍÎÏ" +
	"ÐÑÒÓÔÕÖÙÚÛÜÝÞµ×÷" +
	"©¡¢£⁄¥ƒ§¤’“«‹›ﬁﬂ" +
	"®–†‡·¦¶•‚„”»…‰¬¿" +
	"¹ˋ´ˆ˜¯˘˙¨²˚¸³˝˛ˇ" +
	"—±¼½¾àáâãäåçèéêë" +
	"ìÆíªîïðñŁØŒºòóôõ" +
	"öæùúûıüýłøœßþÿ"

var nextstep8BitTable = []rune(nextstep8BitCharacterMap)

// oldBinaryPlistTypeNumber identifies the shape of one value in the old
// NeXTSTEP binary property list format. This format predates, and is
// structurally unrelated to, the modern bplist00 format howett.net/plist
// decodes: there is no magic number, every length is a raw 4-byte
// little-endian integer, and there's no object table or offset index -
// values nest inline, depth-first, the way a hand-rolled serializer
// from the early 1990s would write them.
type oldBinaryPlistTypeNumber uint32

const (
	oldPlistTypeArray      oldBinaryPlistTypeNumber = 2
	oldPlistTypeData       oldBinaryPlistTypeNumber = 4
	oldPlistTypeStringNext oldBinaryPlistTypeNumber = 5
	oldPlistTypeStringUTF  oldBinaryPlistTypeNumber = 6
	oldPlistTypeDictionary oldBinaryPlistTypeNumber = 7
	oldPlistTypeNil        oldBinaryPlistTypeNumber = 8
)

// deserializeOldBinaryPlist decodes an old-format NeXTSTEP binary
// property list, the payload -[NSArchiver encodePropertyList:] embeds
// in a typedstream NSData blob, and requires that data contains nothing
// beyond the encoded value. Ported from old_binary_plist.py's
// deserialize, which explicitly documents that this is a distinct,
// simpler format from the modern bplist00 one.
func deserializeOldBinaryPlist(data []byte) (interface{}, error) {
	r := bytes.NewReader(data)
	value, err := deserializeOldBinaryPlistFromReader(r)
	if err != nil {
		return nil, err
	}
	if remaining := r.Len(); remaining != 0 {
		return nil, fmt.Errorf("archiver: %d bytes of data after the end of the old-format property list", remaining)
	}
	return value, nil
}

func readOldPlistExact(r *bytes.Reader, byteCount int) ([]byte, error) {
	buf := make([]byte, byteCount)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("archiver: old-format property list: %w", err)
	}
	return buf, nil
}

func readOldPlistUint32(r *bytes.Reader) (uint32, error) {
	buf, err := readOldPlistExact(r, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func deserializeOldBinaryPlistFromReader(r *bytes.Reader) (interface{}, error) {
	raw, err := readOldPlistUint32(r)
	if err != nil {
		return nil, err
	}
	typeNumber := oldBinaryPlistTypeNumber(raw)

	switch typeNumber {
	case oldPlistTypeData, oldPlistTypeStringNext, oldPlistTypeStringUTF:
		return decodeOldPlistLengthPrefixed(r, typeNumber)
	case oldPlistTypeArray, oldPlistTypeDictionary:
		return decodeOldPlistCollection(r, typeNumber)
	case oldPlistTypeNil:
		return nil, nil
	default:
		return nil, fmt.Errorf("archiver: old-format property list: unknown type number %d", raw)
	}
}

func decodeOldPlistLengthPrefixed(r *bytes.Reader, typeNumber oldBinaryPlistTypeNumber) (interface{}, error) {
	length, err := readOldPlistUint32(r)
	if err != nil {
		return nil, err
	}
	data, err := readOldPlistExact(r, int(length))
	if err != nil {
		return nil, err
	}
	padLen := (4 - int(length)%4) % 4
	padding, err := readOldPlistExact(r, padLen)
	if err != nil {
		return nil, err
	}
	for _, b := range padding {
		if b != 0 {
			return nil, fmt.Errorf("archiver: old-format property list: alignment padding after string/data should be all zero bytes, got %x", padding)
		}
	}

	switch typeNumber {
	case oldPlistTypeData:
		return data, nil
	case oldPlistTypeStringNext:
		return decodeNextstep8BitString(data)
	case oldPlistTypeStringUTF:
		return decodeUTF16WithBOM(data)
	default:
		panic("unreachable")
	}
}

func decodeNextstep8BitString(data []byte) (string, error) {
	runes := make([]rune, len(data))
	for i, b := range data {
		if int(b) >= len(nextstep8BitTable) {
			return "", fmt.Errorf("archiver: old-format property list: unassigned NeXTSTEP 8-bit character 0x%02x", b)
		}
		runes[i] = nextstep8BitTable[b]
	}
	return string(runes), nil
}

// decodeUTF16WithBOM decodes data as UTF-16, honoring a leading
// byte-order mark. macOS always writes one; the reference implementation
// falls back to platform-native order when it's missing, which we
// approximate with little-endian, the overwhelmingly common case.
func decodeUTF16WithBOM(data []byte) (string, error) {
	var order binary.ByteOrder = binary.LittleEndian
	switch {
	case len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF:
		order = binary.BigEndian
		data = data[2:]
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE:
		order = binary.LittleEndian
		data = data[2:]
	}
	if len(data)%2 != 0 {
		return "", fmt.Errorf("archiver: old-format property list: UTF-16 string has an odd byte length %d", len(data))
	}
	units := make([]uint16, len(data)/2)
	for i := range units {
		units[i] = order.Uint16(data[2*i : 2*i+2])
	}
	return string(utf16.Decode(units)), nil
}

func decodeOldPlistCollection(r *bytes.Reader, typeNumber oldBinaryPlistTypeNumber) (interface{}, error) {
	elementCount, err := readOldPlistUint32(r)
	if err != nil {
		return nil, err
	}

	var keys []string
	if typeNumber == oldPlistTypeDictionary {
		keys = make([]string, elementCount)
		for i := range keys {
			key, err := deserializeOldBinaryPlistFromReader(r)
			if err != nil {
				return nil, err
			}
			str, ok := key.(string)
			if !ok {
				return nil, fmt.Errorf("archiver: old-format property list: dictionary key must be a string, got %T", key)
			}
			keys[i] = str
		}
	}

	valueLengths := make([]uint32, elementCount)
	for i := range valueLengths {
		valueLengths[i], err = readOldPlistUint32(r)
		if err != nil {
			return nil, err
		}
	}

	values := make([]interface{}, elementCount)
	for i, expected := range valueLengths {
		before := r.Size() - int64(r.Len())
		value, err := deserializeOldBinaryPlistFromReader(r)
		if err != nil {
			return nil, err
		}
		after := r.Size() - int64(r.Len())
		if uint32(after-before) != expected {
			return nil, fmt.Errorf("archiver: old-format property list: expected value to be %d bytes long, but actual length is %d", expected, after-before)
		}
		values[i] = value
	}

	switch typeNumber {
	case oldPlistTypeArray:
		return values, nil
	case oldPlistTypeDictionary:
		result := make(map[string]interface{}, elementCount)
		for i, k := range keys {
			result[k] = values[i]
		}
		return result, nil
	default:
		panic("unreachable")
	}
}
