package files

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/oukeidos/fictra/internal/textutil"
)

// maxNameChars bounds a generated file name stem.
const maxNameChars = 80

// SafePath returns path if nothing exists there, otherwise the first free
// "name_N.ext" for N in 1..9, otherwise a uuid-suffixed name. changed
// reports whether the path differs from the input.
func SafePath(path string) (string, bool, error) {
	if path == "" {
		return "", false, fmt.Errorf("path is empty")
	}
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return path, false, nil
	}
	if err != nil {
		return "", false, err
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; i <= 9; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		_, err := os.Stat(candidate)
		if os.IsNotExist(err) {
			return candidate, true, nil
		}
		if err != nil {
			return "", false, err
		}
	}
	return fmt.Sprintf("%s_%s%s", base, uuid.NewString()[:8], ext), true, nil
}

// SafeFileName turns a chapter title into a portable file name stem:
// separators, reserved and control characters become "_", leading and
// trailing dots and spaces are dropped and the result is capped in length.
func SafeFileName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r < 0x20 || r == 0x7f:
			b.WriteRune('_')
		case strings.ContainsRune(`<>:"/\|?*`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Trim(textutil.Truncate(b.String(), maxNameChars), ". ")
	if out == "" {
		return "untitled"
	}
	return out
}
