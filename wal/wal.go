// Package wal owns the single append-only log file that backs a kvslite
// database: appending new frames, random-reading value bytes back out,
// and replaying the log on open while truncating any torn write left by
// a prior crash.
package wal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/minorcell/kvslite/record"
)

// Filename is the single file a kvslite database directory ever
// contains. No lock file, no manifest, no other metadata.
const Filename = "wal.log"

// syncer is the subset of *os.File that the platform-specific syncData
// implementations need.
type syncer interface {
	Fd() uintptr
	Sync() error
}

// ReplayStats summarizes what Open found when it replayed an existing
// log file.
type ReplayStats struct {
	Total          int
	Valid          int
	Corrupted      int
	TruncatedBytes int64
}

// Wal owns the log file: an append-mode writer handle and an
// independent random-read handle, plus the cached logical length.
type Wal struct {
	path      string
	writeFile *os.File
	readFile  *os.File
	offset    int64
}

// Open ensures dir exists, replays any existing wal.log, opens the
// writer and reader handles, and returns the recovered records in
// on-disk order alongside replay statistics. Open never fails because of
// log corruption — corruption is absorbed and reported via ReplayStats,
// with the damaged suffix truncated from the file.
func Open(dir string) (*Wal, []record.Record, ReplayStats, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, ReplayStats{}, fmt.Errorf("wal: create directory: %w", err)
	}

	path := filepath.Join(dir, Filename)

	var records []record.Record
	var stats ReplayStats

	if _, err := os.Stat(path); err == nil {
		records, stats, err = replay(path)
		if err != nil {
			return nil, nil, ReplayStats{}, fmt.Errorf("wal: replay: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, nil, ReplayStats{}, fmt.Errorf("wal: stat: %w", err)
	}

	writeFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, ReplayStats{}, fmt.Errorf("wal: open for append: %w", err)
	}

	readFile, err := os.OpenFile(path, os.O_RDONLY, 0o644)
	if err != nil {
		writeFile.Close()
		return nil, nil, ReplayStats{}, fmt.Errorf("wal: open for read: %w", err)
	}

	info, err := writeFile.Stat()
	if err != nil {
		writeFile.Close()
		readFile.Close()
		return nil, nil, ReplayStats{}, fmt.Errorf("wal: stat: %w", err)
	}

	w := &Wal{
		path:      path,
		writeFile: writeFile,
		readFile:  readFile,
		offset:    info.Size(),
	}

	return w, records, stats, nil
}

// replay reads frames sequentially from path, stopping and truncating
// the file at the first one that fails to decode. Every complete frame
// up to that point is preserved; the failing frame and anything after it
// is discarded as a single truncation.
func replay(path string) ([]record.Record, ReplayStats, error) {
	var stats ReplayStats
	var records []record.Record

	file, err := os.Open(path)
	if err != nil {
		return nil, stats, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, stats, err
	}
	fileLen := info.Size()

	reader := bufio.NewReader(file)
	var lastValidEnd int64

	for {
		rec, ok, decodeErr := record.Decode(reader)
		if decodeErr == nil && !ok {
			// Clean end of stream.
			break
		}
		if decodeErr != nil {
			stats.Total++
			stats.Corrupted++
			stats.TruncatedBytes = fileLen - lastValidEnd

			file.Close()

			if stats.TruncatedBytes > 0 {
				if err := os.Truncate(path, lastValidEnd); err != nil {
					return nil, stats, fmt.Errorf("truncate corrupted tail: %w", err)
				}
			}
			return records, stats, nil
		}

		stats.Total++
		stats.Valid++
		records = append(records, rec)
		lastValidEnd += int64(rec.Len())
	}

	file.Close()
	return records, stats, nil
}

// Append encodes rec, writes it to the end of the log, flushes it to the
// OS, and — when sync is true — forces the data to the storage device
// before returning. It returns the offset at which the frame starts
// (equal to the pre-append file length).
func (w *Wal) Append(rec record.Record, sync bool) (int64, error) {
	data, err := rec.Encode()
	if err != nil {
		return 0, err
	}

	start := w.offset

	n, err := w.writeFile.Write(data)
	w.offset += int64(n)
	if err != nil {
		return 0, fmt.Errorf("wal: append: %w", err)
	}

	if sync {
		if err := syncData(w.writeFile); err != nil {
			return 0, fmt.Errorf("wal: sync: %w", err)
		}
	}

	return start, nil
}

// ReadAt reads exactly length bytes starting at offset from the reader
// handle, using a positional read that leaves the handle's file position
// unchanged. It fails if the requested range runs past the end of the
// file.
func (w *Wal) ReadAt(offset int64, length int) ([]byte, error) {
	buf := make([]byte, length)
	n, err := w.readFile.ReadAt(buf, offset)
	if err != nil && !(err == io.EOF && n == length) {
		return nil, fmt.Errorf("wal: read at %d: %w", offset, err)
	}
	return buf, nil
}

// Size returns the current logical length of the log.
func (w *Wal) Size() int64 {
	return w.offset
}

// Path returns the on-disk location of the log file.
func (w *Wal) Path() string {
	return w.path
}

// Close releases both file handles.
func (w *Wal) Close() error {
	writeErr := w.writeFile.Close()
	readErr := w.readFile.Close()
	if writeErr != nil {
		return writeErr
	}
	return readErr
}

// Sync forces any buffered writer data to the storage device without
// waiting for the next Append.
func (w *Wal) Sync() error {
	return syncData(w.writeFile)
}
