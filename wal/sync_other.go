//go:build !linux

package wal

// syncData falls back to a full (data + metadata) sync on platforms
// without a data-only primitive wired up.
func syncData(f syncer) error {
	return f.Sync()
}
