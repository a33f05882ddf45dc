//go:build !windows

package files

import "os"

func isLink(_ string, info os.FileInfo) (bool, error) {
	return info.Mode()&os.ModeSymlink != 0, nil
}

func replaceFile(from, to string) error {
	return os.Rename(from, to)
}
