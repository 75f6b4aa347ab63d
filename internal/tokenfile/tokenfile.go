// Package tokenfile saves bearer tokens to disk and reads them back, either
// under a well-known temp location keyed by an identifier or at an explicit
// path.
package tokenfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FilePrefix is prepended to the identifier to build the token file name
// inside os.TempDir.
const FilePrefix = "throttleq-token-"

var (
	// ErrNoLocation is returned when neither an identifier nor a path is set.
	ErrNoLocation = errors.New("token identifier or file path required")

	// ErrInvalidIdentifier is returned for identifiers that are not plain names.
	ErrInvalidIdentifier = errors.New("token identifier must not contain path separators")

	// ErrNotFound is returned when no token has been saved at the location.
	ErrNotFound = errors.New("token not found")

	// ErrEmpty is returned when the token file exists but holds no token.
	ErrEmpty = errors.New("token file is empty")
)

// Location says where a token lives. Identifier takes precedence over Path.
type Location struct {
	Identifier string
	Path       string
}

// IsZero reports whether neither field is set.
func (l Location) IsZero() bool {
	return l.Identifier == "" && l.Path == ""
}

// Resolve returns the file the location refers to.
func (l Location) Resolve() (string, error) {
	switch {
	case l.Identifier != "":
		if strings.ContainsAny(l.Identifier, `/\`) || l.Identifier == "." || l.Identifier == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, l.Identifier)
		}
		return filepath.Join(os.TempDir(), FilePrefix+l.Identifier), nil
	case l.Path != "":
		return l.Path, nil
	default:
		return "", ErrNoLocation
	}
}

// Save writes token to the location, readable only by the current user.
func Save(loc Location, token string) (string, error) {
	path, err := loc.Resolve()
	if err != nil {
		return "", err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrEmpty
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to save token to %s: %w", path, err)
	}
	return path, nil
}

// Load reads the token saved at the location.
func Load(loc Location) (string, error) {
	path, err := loc.Resolve()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w at %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("failed to read token from %s: %w", path, err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("%w: %s", ErrEmpty, path)
	}
	return token, nil
}
