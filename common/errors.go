// Package common holds the error taxonomy shared by kvslite's record
// codec, WAL manager, and database facade.
package common

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyNotFound is returned by Get when the key is absent from the
	// index (never written, or removed by a Delete).
	ErrKeyNotFound = errors.New("kvslite: key not found")

	// ErrClosed is returned by Put, Get, Delete and Sync when issued
	// against a database whose Close has already run.
	ErrClosed = errors.New("kvslite: database closed")

	// ErrUnexpectedEOF marks a frame whose header decoded but whose body
	// was shorter than its own lengths require, or whose rec_len fell
	// outside the legal [22, 2MiB] bound. Treated as corruption, not a
	// plain io.EOF, because it can occur mid-stream.
	ErrUnexpectedEOF = errors.New("kvslite: unexpected eof while reading record")
)

// CrcMismatchError reports that a frame's stored CRC32 does not match the
// CRC32 computed over rec_len through the end of the value.
type CrcMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *CrcMismatchError) Error() string {
	return fmt.Sprintf("kvslite: crc mismatch: expected %#08x, got %#08x", e.Expected, e.Actual)
}

// InvalidMagicError reports that a frame's first four bytes were not
// the 'K','V','S','L' magic.
type InvalidMagicError struct {
	Expected [4]byte
	Actual   [4]byte
}

func (e *InvalidMagicError) Error() string {
	return fmt.Sprintf("kvslite: invalid magic: expected %q, got %q", e.Expected[:], e.Actual[:])
}

// UnsupportedVersionError reports a version byte other than the one
// frame layout this package knows how to decode.
type UnsupportedVersionError struct {
	Version byte
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("kvslite: unsupported record version: %d", e.Version)
}

// InvalidRecordKindError reports a kind byte other than Put or Delete.
type InvalidRecordKindError struct {
	Kind byte
}

func (e *InvalidRecordKindError) Error() string {
	return fmt.Sprintf("kvslite: invalid record kind: %d", e.Kind)
}

// KeyTooLargeError reports a caller-supplied key exceeding the codec's
// maximum key size.
type KeyTooLargeError struct {
	Size int
	Max  int
}

func (e *KeyTooLargeError) Error() string {
	return fmt.Sprintf("kvslite: key too large: %d bytes (max %d)", e.Size, e.Max)
}

// ValueTooLargeError reports a caller-supplied value exceeding the
// codec's maximum value size.
type ValueTooLargeError struct {
	Size int
	Max  int
}

func (e *ValueTooLargeError) Error() string {
	return fmt.Sprintf("kvslite: value too large: %d bytes (max %d)", e.Size, e.Max)
}

// IsCorruption reports whether err is one of the frame-corruption kinds
// produced by the record codec during decode (CRC mismatch, bad magic,
// unsupported version, invalid kind, or a truncated/implausible frame).
// The WAL manager's replay loop treats every decode error as corruption
// unconditionally, so it has no need to call this itself; IsCorruption
// exists for callers downstream of this package that need to tell a
// corrupt-frame error apart from a caller error or plain I/O failure.
func IsCorruption(err error) bool {
	if errors.Is(err, ErrUnexpectedEOF) {
		return true
	}
	var crc *CrcMismatchError
	var magic *InvalidMagicError
	var ver *UnsupportedVersionError
	var kind *InvalidRecordKindError
	return errors.As(err, &crc) || errors.As(err, &magic) || errors.As(err, &ver) || errors.As(err, &kind)
}
