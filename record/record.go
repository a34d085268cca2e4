// Package record implements the self-delimiting, CRC-checked binary frame
// that kvslite appends to its write-ahead log for every mutation.
//
// Frame layout (little-endian):
//
//	offset  size  field
//	  0      4    magic  = 'K','V','S','L'
//	  4      4    rec_len (total frame length, magic through crc32)
//	  8      1    version = 1
//	  9      1    kind    (1 = Put, 2 = Delete)
//	 10      4    key_len
//	 14      4    val_len
//	 18    key_len   key bytes
//	  …    val_len   value bytes
//	 end-4   4    crc32 (IEEE, over bytes [4 .. end-4))
package record

import (
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/minorcell/kvslite/common"
)

// Kind distinguishes a Put from a Delete record.
type Kind byte

const (
	Put    Kind = 1
	Delete Kind = 2
)

const (
	// MaxKeySize is the hard limit on key length in bytes.
	MaxKeySize = 1024
	// MaxValueSize is the hard limit on value length in bytes.
	MaxValueSize = 1024 * 1024
	// MaxRecordSize is the hard limit on a whole encoded frame.
	MaxRecordSize = 2 * 1024 * 1024

	// headerSize is magic(4) + rec_len(4) + version(1) + kind(1) +
	// key_len(4) + val_len(4).
	headerSize = 18
	// trailerSize is the trailing crc32.
	trailerSize = 4

	version = 1
)

var magic = [4]byte{'K', 'V', 'S', 'L'}

// Record is a single logical mutation: a Put carrying a key and value, or
// a Delete carrying only a key (its Value is always empty).
type Record struct {
	Kind  Kind
	Key   []byte
	Value []byte
}

// NewPut builds a Put record, validating key and value sizes.
func NewPut(key, value []byte) (Record, error) {
	if len(key) > MaxKeySize {
		return Record{}, &common.KeyTooLargeError{Size: len(key), Max: MaxKeySize}
	}
	if len(value) > MaxValueSize {
		return Record{}, &common.ValueTooLargeError{Size: len(value), Max: MaxValueSize}
	}
	return Record{Kind: Put, Key: key, Value: value}, nil
}

// NewDelete builds a Delete record, validating the key size.
func NewDelete(key []byte) (Record, error) {
	if len(key) > MaxKeySize {
		return Record{}, &common.KeyTooLargeError{Size: len(key), Max: MaxKeySize}
	}
	return Record{Kind: Delete, Key: key, Value: nil}, nil
}

// Len returns the exact number of bytes Encode will produce for r.
func (r Record) Len() int {
	return headerSize + len(r.Key) + len(r.Value) + trailerSize
}

// Encode serializes r into a freshly allocated buffer of exactly r.Len()
// bytes. It fails only if r's key or value exceeds the codec's size
// limits — callers that built r via NewPut/NewDelete never hit this.
func (r Record) Encode() ([]byte, error) {
	if len(r.Key) > MaxKeySize {
		return nil, &common.KeyTooLargeError{Size: len(r.Key), Max: MaxKeySize}
	}
	if len(r.Value) > MaxValueSize {
		return nil, &common.ValueTooLargeError{Size: len(r.Value), Max: MaxValueSize}
	}

	recLen := r.Len()
	buf := make([]byte, recLen)

	copy(buf[0:4], magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], uint32(recLen))
	buf[8] = version
	buf[9] = byte(r.Kind)
	binary.LittleEndian.PutUint32(buf[10:14], uint32(len(r.Key)))
	binary.LittleEndian.PutUint32(buf[14:18], uint32(len(r.Value)))
	copy(buf[18:18+len(r.Key)], r.Key)
	copy(buf[18+len(r.Key):18+len(r.Key)+len(r.Value)], r.Value)

	crc := crc32.ChecksumIEEE(buf[4 : recLen-trailerSize])
	binary.LittleEndian.PutUint32(buf[recLen-trailerSize:recLen], crc)

	return buf, nil
}

// Decode reads one frame from r.
//
// It returns (rec, true, nil) on a successfully decoded frame, (Record{},
// false, nil) on a clean end-of-stream (zero bytes available at a frame
// boundary), and a non-nil error for anything else: a partial magic,
// an implausible or mismatched rec_len, a short body read, a CRC
// mismatch, an unsupported version, an invalid kind byte, or a key_len or
// val_len over the size limits (reported as *common.KeyTooLargeError or
// *common.ValueTooLargeError). None of those error paths panic or
// silently accept corrupt input.
func Decode(r io.Reader) (Record, bool, error) {
	var magicBuf [4]byte
	n, err := io.ReadFull(r, magicBuf[:])
	if err != nil {
		if n == 0 && err == io.EOF {
			return Record{}, false, nil
		}
		return Record{}, false, common.ErrUnexpectedEOF
	}

	if magicBuf != magic {
		return Record{}, false, &common.InvalidMagicError{Expected: magic, Actual: magicBuf}
	}

	var recLenBuf [4]byte
	if _, err := io.ReadFull(r, recLenBuf[:]); err != nil {
		return Record{}, false, common.ErrUnexpectedEOF
	}
	recLen := binary.LittleEndian.Uint32(recLenBuf[:])

	if recLen < headerSize+trailerSize || recLen > MaxRecordSize {
		return Record{}, false, common.ErrUnexpectedEOF
	}

	remaining := make([]byte, recLen-8)
	if _, err := io.ReadFull(r, remaining); err != nil {
		return Record{}, false, common.ErrUnexpectedEOF
	}

	crcOffset := len(remaining) - trailerSize
	storedCRC := binary.LittleEndian.Uint32(remaining[crcOffset:])

	hasher := crc32.NewIEEE()
	hasher.Write(recLenBuf[:])
	hasher.Write(remaining[:crcOffset])
	computedCRC := hasher.Sum32()

	if storedCRC != computedCRC {
		return Record{}, false, &common.CrcMismatchError{Expected: storedCRC, Actual: computedCRC}
	}

	ver := remaining[0]
	if ver != version {
		return Record{}, false, &common.UnsupportedVersionError{Version: ver}
	}

	kindByte := remaining[1]
	var kind Kind
	switch kindByte {
	case byte(Put):
		kind = Put
	case byte(Delete):
		kind = Delete
	default:
		return Record{}, false, &common.InvalidRecordKindError{Kind: kindByte}
	}

	keyLen := binary.LittleEndian.Uint32(remaining[2:6])
	valLen := binary.LittleEndian.Uint32(remaining[6:10])

	if keyLen > MaxKeySize {
		return Record{}, false, &common.KeyTooLargeError{Size: int(keyLen), Max: MaxKeySize}
	}
	if valLen > MaxValueSize {
		return Record{}, false, &common.ValueTooLargeError{Size: int(valLen), Max: MaxValueSize}
	}

	// headerSize(18) - 8 bytes already consumed as magic+rec_len leaves
	// 10 bytes of header fields at the front of `remaining` (version,
	// kind, key_len, val_len), then key, then value, then the crc32.
	if uint32(headerSize-8)+keyLen+valLen+trailerSize != uint32(len(remaining)) {
		return Record{}, false, common.ErrUnexpectedEOF
	}

	keyStart := headerSize - 8
	keyEnd := keyStart + int(keyLen)
	valEnd := keyEnd + int(valLen)

	key := make([]byte, keyLen)
	copy(key, remaining[keyStart:keyEnd])

	var value []byte
	if valLen > 0 {
		value = make([]byte, valLen)
		copy(value, remaining[keyEnd:valEnd])
	}

	return Record{Kind: kind, Key: key, Value: value}, true, nil
}
