package files

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrLinkedPath is returned when an output path, or a directory above it,
// is a symlink or junction.
var ErrLinkedPath = errors.New("output path goes through a link")

// RejectSymlinkPath refuses output paths that would follow a link. Export
// files and log files are only ever written to real directories. Components
// that do not exist yet are fine: they will be created as plain entries.
func RejectSymlinkPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	for _, p := range lineage(abs) {
		info, err := os.Lstat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", p, err)
		}
		linked, err := isLink(p, info)
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", p, err)
		}
		if linked {
			return fmt.Errorf("%w: %s (at %s)", ErrLinkedPath, path, p)
		}
	}
	return nil
}

// lineage lists abs and each of its parents, root first.
func lineage(abs string) []string {
	var out []string
	for p := filepath.Clean(abs); ; {
		out = append(out, p)
		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		p = parent
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
