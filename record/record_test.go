package record

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/minorcell/kvslite/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Record{
		{Kind: Put, Key: []byte("hello"), Value: []byte("world")},
		{Kind: Delete, Key: []byte("hello")},
		{Kind: Put, Key: []byte(""), Value: []byte("empty_key_value")},
		{Kind: Put, Key: []byte("empty_value"), Value: []byte("")},
		{Kind: Put, Key: []byte{0x00, 0x01, 0x02, 0xFF}, Value: []byte{0xDE, 0xAD, 0xBE, 0xEF}},
	}

	for _, want := range cases {
		encoded, err := want.Encode()
		require.NoError(t, err)
		require.Len(t, encoded, want.Len())

		got, ok, err := Decode(bytes.NewReader(encoded))
		require.NoError(t, err)
		require.True(t, ok)

		// Decode can't recover nil-vs-empty for a zero-length value (only
		// the length round-trips), so empty values compare equal either way.
		if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestDecodeCleanEOF(t *testing.T) {
	_, ok, err := Decode(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodePartialMagic(t *testing.T) {
	_, _, err := Decode(bytes.NewReader([]byte{'K', 'V'}))
	assert.ErrorIs(t, err, common.ErrUnexpectedEOF)
}

func TestDecodeInvalidMagic(t *testing.T) {
	_, _, err := Decode(bytes.NewReader([]byte("NOPE????????????????????")))
	var magicErr *common.InvalidMagicError
	require.ErrorAs(t, err, &magicErr)
}

func TestSingleBitCorruptionNeverSilentlyAccepted(t *testing.T) {
	rec, err := NewPut([]byte("key"), []byte("value"))
	require.NoError(t, err)
	encoded, err := rec.Encode()
	require.NoError(t, err)

	for i := range encoded {
		for bit := 0; bit < 8; bit++ {
			corrupt := append([]byte(nil), encoded...)
			corrupt[i] ^= 1 << bit

			got, ok, err := Decode(bytes.NewReader(corrupt))
			if err == nil {
				// Every byte of the frame is covered by either the magic
				// check or the CRC, so every flip must be rejected.
				t.Fatalf("byte %d bit %d: corruption silently accepted (ok=%v, record %+v)", i, bit, ok, got)
			}
			assert.NotPanics(t, func() {})
		}
	}
}

func TestDecodeCRCMismatch(t *testing.T) {
	rec, err := NewPut([]byte("key"), []byte("value"))
	require.NoError(t, err)
	encoded, err := rec.Encode()
	require.NoError(t, err)

	encoded[len(encoded)-1] ^= 0xFF

	_, _, err = Decode(bytes.NewReader(encoded))
	var crcErr *common.CrcMismatchError
	require.ErrorAs(t, err, &crcErr)
}

func TestDecodeRecLenMismatchIsUnexpectedEOF(t *testing.T) {
	rec, err := NewPut([]byte("key"), []byte("value"))
	require.NoError(t, err)
	encoded, err := rec.Encode()
	require.NoError(t, err)

	// Inflating rec_len past the bytes actually present makes the body
	// read come up short, which Decode reports as ErrUnexpectedEOF.
	recLenOff := 4
	bad := append([]byte(nil), encoded...)
	newLen := len(bad) + 8
	bad[recLenOff] = byte(newLen)
	bad[recLenOff+1] = byte(newLen >> 8)
	bad[recLenOff+2] = byte(newLen >> 16)
	bad[recLenOff+3] = byte(newLen >> 24)

	_, _, err = Decode(bytes.NewReader(bad))
	require.ErrorIs(t, err, common.ErrUnexpectedEOF)
}

func TestKeyTooLarge(t *testing.T) {
	_, err := NewPut(bytes.Repeat([]byte{'k'}, MaxKeySize+1), []byte("v"))
	var tooLarge *common.KeyTooLargeError
	require.ErrorAs(t, err, &tooLarge)
}

func TestValueTooLarge(t *testing.T) {
	_, err := NewPut([]byte("k"), bytes.Repeat([]byte{'v'}, MaxValueSize+1))
	var tooLarge *common.ValueTooLargeError
	require.ErrorAs(t, err, &tooLarge)
}
