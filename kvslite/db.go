// Package kvslite is the public API of an embedded, crash-safe
// key-value store built on the Bitcask model: every mutation is appended
// to a single write-ahead log, and an in-memory index maps each live key
// to the byte offset and length of its most recent value inside that
// log. Values are read back on demand with a random read.
//
// A Db is not safe for concurrent use. Put and Delete mutate the
// in-memory index and Get reads it without any locking, so reads and
// writes on one instance must be serialized by the caller (e.g. with an external mutex, or by giving each goroutine its
// own process, never the same wal.log directory at once).
package kvslite

import (
	"fmt"
	"os"

	"github.com/minorcell/kvslite/common"
	"github.com/minorcell/kvslite/record"
	"github.com/minorcell/kvslite/wal"
)

// Options configures a Db.
type Options struct {
	// SyncOnWrite, when true, forces every Put/Delete's frame to durable
	// storage before the call returns. When false, the frame is still
	// flushed to the OS but the device-level sync is skipped, trading
	// crash durability of the last few writes for throughput.
	SyncOnWrite bool
}

// valuePos locates a value's bytes inside the WAL: offset points at the
// first value byte, length is exactly the value's length.
type valuePos struct {
	offset int64
	length int
}

// Stats is a read-only snapshot of a Db's size.
type Stats struct {
	KeyCount int
	WalSize  int64
}

// Db is an open key-value database. Close releases its file handles.
type Db struct {
	w      *wal.Wal
	index  map[string]valuePos
	opts   Options
	closed bool
}

// Open opens or creates a database rooted at path. If a wal.log already
// exists there, Open replays it, reconstructing the same index that
// existed just before the last clean shutdown (modulo any torn write at
// the tail, which is truncated away). Replay corruption is never
// returned as an error; a diagnostic line is printed to stderr when
// bytes were truncated, exactly the teacher's recovery-logging texture —
// advisory only, not part of the return value.
func Open(path string, opts Options) (*Db, error) {
	w, records, stats, err := wal.Open(path)
	if err != nil {
		return nil, err
	}

	if stats.TruncatedBytes > 0 {
		fmt.Fprintf(os.Stderr, "kvslite: wal recovery truncated %d bytes (%d corrupted records)\n",
			stats.TruncatedBytes, stats.Corrupted)
	}

	db := &Db{
		w:     w,
		index: make(map[string]valuePos, len(records)),
		opts:  opts,
	}
	db.rebuildIndex(records)

	return db, nil
}

// rebuildIndex replays the recovered records in order, applying
// last-write-wins for Puts and removing the key on Delete, exactly as
// the live index was built during the original run.
func (db *Db) rebuildIndex(records []record.Record) {
	var cursor int64

	for _, rec := range records {
		length := rec.Len()

		switch rec.Kind {
		case record.Put:
			valueOffset := cursor + int64(length) - 4 - int64(len(rec.Value))
			db.index[string(rec.Key)] = valuePos{offset: valueOffset, length: len(rec.Value)}
		case record.Delete:
			delete(db.index, string(rec.Key))
		}

		cursor += int64(length)
	}
}

// Put appends key/value to the WAL (forcing it to the storage device
// when Options.SyncOnWrite is set) and then, only once that append has
// succeeded, updates the in-memory index. If the process
// crashes between the WAL append and the index update, the next Open
// will reinstate the entry from the log — the index is never ahead of
// what's on disk.
func (db *Db) Put(key, value []byte) error {
	if db.closed {
		return common.ErrClosed
	}

	rec, err := record.NewPut(key, value)
	if err != nil {
		return err
	}

	recordOffset, err := db.w.Append(rec, db.opts.SyncOnWrite)
	if err != nil {
		return err
	}

	valueOffset := recordOffset + int64(rec.Len()) - 4 - int64(len(value))
	db.index[string(key)] = valuePos{offset: valueOffset, length: len(value)}

	return nil
}

// Get returns the current value for key, or common.ErrKeyNotFound if the
// key is absent. The value bytes are read directly at the position the
// index records; the frame's CRC is not re-checked, so corruption of a
// stored value is not detected here. An I/O error from that read is
// returned to the caller.
func (db *Db) Get(key []byte) ([]byte, error) {
	if db.closed {
		return nil, common.ErrClosed
	}

	pos, ok := db.index[string(key)]
	if !ok {
		return nil, common.ErrKeyNotFound
	}

	return db.w.ReadAt(pos.offset, pos.length)
}

// Delete appends a Delete record and removes key from the index. It is
// idempotent: deleting an absent key still appends a tombstone and
// always succeeds.
func (db *Db) Delete(key []byte) error {
	if db.closed {
		return common.ErrClosed
	}

	rec, err := record.NewDelete(key)
	if err != nil {
		return err
	}

	if _, err := db.w.Append(rec, db.opts.SyncOnWrite); err != nil {
		return err
	}

	delete(db.index, string(key))
	return nil
}

// Stats returns a read-only snapshot of the database's size.
func (db *Db) Stats() Stats {
	return Stats{
		KeyCount: len(db.index),
		WalSize:  db.w.Size(),
	}
}

// Sync forces any buffered writes to the storage device without waiting
// for the next Put/Delete with SyncOnWrite set.
func (db *Db) Sync() error {
	if db.closed {
		return common.ErrClosed
	}
	return db.w.Sync()
}

// Close releases the database's file handles. It is safe to call more
// than once.
func (db *Db) Close() error {
	if db.closed {
		return nil
	}
	db.closed = true
	return db.w.Close()
}
