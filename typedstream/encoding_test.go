package typedstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTypeEncodingScalars(t *testing.T) {
	for _, code := range []byte("cCsSiIlLqQfd*@#:%+") {
		d, n, err := ParseTypeEncoding([]byte{code})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, []byte{code}, d.Encoding())
	}
}

func TestParseTypeEncodingUnknownIsPreserved(t *testing.T) {
	d, n, err := ParseTypeEncoding([]byte("?"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, KindUnknown, d.Kind)
	assert.Equal(t, []byte("?"), d.Encoding())
}

func TestParseTypeEncodingArray(t *testing.T) {
	d, n, err := ParseTypeEncoding([]byte("[10i]"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, KindArray, d.Kind)
	assert.Equal(t, 10, d.Length)
	assert.Equal(t, KindScalar, d.Element.Kind)
	assert.Equal(t, byte('i'), d.Element.Code)
	assert.Equal(t, []byte("[10i]"), d.Encoding())
}

func TestParseTypeEncodingNestedArray(t *testing.T) {
	d, n, err := ParseTypeEncoding([]byte("[3[4c]]"))
	require.NoError(t, err)
	assert.Equal(t, len("[3[4c]]"), n)
	require.Equal(t, KindArray, d.Kind)
	require.Equal(t, KindArray, d.Element.Kind)
	assert.Equal(t, 4, d.Element.Length)
}

func TestParseTypeEncodingStruct(t *testing.T) {
	d, n, err := ParseTypeEncoding([]byte("{CGPoint=ff}"))
	require.NoError(t, err)
	assert.Equal(t, len("{CGPoint=ff}"), n)
	assert.Equal(t, KindStruct, d.Kind)
	assert.Equal(t, "CGPoint", string(d.Name))
	require.Len(t, d.Fields, 2)
	assert.Equal(t, byte('f'), d.Fields[0].Code)
	assert.Equal(t, []byte("{CGPoint=ff}"), d.Encoding())
}

func TestParseTypeEncodingAnonymousStruct(t *testing.T) {
	d, _, err := ParseTypeEncoding([]byte("{?=ii}"))
	require.NoError(t, err)
	assert.Equal(t, AnonymousStructName, string(d.Name))
}

func TestParseTypeEncodingUnion(t *testing.T) {
	d, n, err := ParseTypeEncoding([]byte("(MyUnion=ic)"))
	require.NoError(t, err)
	assert.Equal(t, len("(MyUnion=ic)"), n)
	assert.Equal(t, KindUnion, d.Kind)
	assert.Equal(t, "MyUnion", string(d.Name))
	require.Len(t, d.Fields, 2)
}

func TestParseTypeEncodingBitfield(t *testing.T) {
	d, n, err := ParseTypeEncoding([]byte("b12"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, KindBitfield, d.Kind)
	assert.Equal(t, 12, d.Length)
	assert.Equal(t, []byte("b12"), d.Encoding())
}

func TestParseTypeEncodingPointer(t *testing.T) {
	d, n, err := ParseTypeEncoding([]byte("^i"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, KindPointer, d.Kind)
	assert.Equal(t, byte('i'), d.Element.Code)
	assert.Equal(t, []byte("^i"), d.Encoding())
}

func TestSplitEncodings(t *testing.T) {
	parts, err := SplitEncodings([]byte("i@[3c]{S=ii}"))
	require.NoError(t, err)
	require.Len(t, parts, 4)
	assert.Equal(t, "i", string(parts[0]))
	assert.Equal(t, "@", string(parts[1]))
	assert.Equal(t, "[3c]", string(parts[2]))
	assert.Equal(t, "{S=ii}", string(parts[3]))
}

func TestSplitEncodingsUnbalancedIsError(t *testing.T) {
	_, err := SplitEncodings([]byte("[3c"))
	require.Error(t, err)
	assert.True(t, IsBadTypeEncoding(err))
}

func TestTypeDescriptorMatchesAnonymousStructName(t *testing.T) {
	named, _, err := ParseTypeEncoding([]byte("{CGPoint=ff}"))
	require.NoError(t, err)
	anon, _, err := ParseTypeEncoding([]byte("{?=ff}"))
	require.NoError(t, err)

	assert.True(t, named.Matches(anon))
	assert.True(t, anon.Matches(named))
}

func TestTypeDescriptorMatchesRejectsDifferentShape(t *testing.T) {
	a, _, err := ParseTypeEncoding([]byte("i"))
	require.NoError(t, err)
	b, _, err := ParseTypeEncoding([]byte("q"))
	require.NoError(t, err)

	assert.False(t, a.Matches(b))
}

func TestAllEncodingsMatch(t *testing.T) {
	assert.True(t, AllEncodingsMatch([][]byte{[]byte("i"), []byte("@")}, [][]byte{[]byte("i"), []byte("@")}))
	assert.False(t, AllEncodingsMatch([][]byte{[]byte("i")}, [][]byte{[]byte("i"), []byte("@")}))
	assert.False(t, AllEncodingsMatch([][]byte{[]byte("i")}, [][]byte{[]byte("q")}))
}
