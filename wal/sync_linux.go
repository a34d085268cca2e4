package wal

import "golang.org/x/sys/unix"

// syncData forces f's data, but not necessarily its metadata, to the
// storage device — the cheaper half of a full fsync. Falls back to a
// plain Sync on platforms where Fdatasync isn't available (see
// sync_other.go).
func syncData(f syncer) error {
	return unix.Fdatasync(int(f.Fd()))
}
