//go:build !linux
// +build !linux

package disk

import "os"

func openSegmentFile(path string, flag int) (*os.File, error) {
	return os.OpenFile(path, flag, 0o644)
}
