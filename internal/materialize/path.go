package materialize

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned for logical paths that resolve outside the project root.
var ErrUnsafePath = errors.New("path escapes the project root")

// Normalize turns a raw path into a root-relative logical path by stripping
// exactly one leading separator. Everything else is left untouched.
func Normalize(raw string) string {
	if strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, string(filepath.Separator)) {
		return raw[1:]
	}
	return raw
}

// resolve maps a logical path onto a cleaned path inside the root, rejecting
// absolute paths, volume names and parent escapes.
func resolve(logical string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(logical))
	switch {
	case rel == "." || rel == "":
		return "", fmt.Errorf("%w: empty path", ErrUnsafePath)
	case filepath.IsAbs(rel) || filepath.VolumeName(rel) != "":
		return "", fmt.Errorf("%w: %q is absolute", ErrUnsafePath, logical)
	case rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)):
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, logical)
	}
	return rel, nil
}
