// Package storage persists attachment content on the filesystem under a
// fixed root, addressed by relative path.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// AttachmentStore writes attachment bytes under a root directory and
// resolves public URLs for stored paths.
type AttachmentStore struct {
	root          string
	publicBaseURL string
}

// NewAttachmentStore creates the store rooted at basePath.
func NewAttachmentStore(basePath, publicBaseURL string) (*AttachmentStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create attachment root: %w", err)
	}
	return &AttachmentStore{root: basePath, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// StoredName produces a collision-resistant filename for an original
// attachment name: unsafe characters replaced, a unique prefix added.
func StoredName(original string) string {
	name := filepath.Base(strings.TrimSpace(original))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "attachment"
	}
	name = unsafeNameChars.ReplaceAllString(name, "_")
	return uuid.NewString() + "_" + name
}

// Write stores content under the given relative path and returns the path.
func (s *AttachmentStore) Write(relPath string, content []byte) (string, error) {
	full, err := s.resolve(relPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create attachment dir: %w", err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return "", fmt.Errorf("write attachment: %w", err)
	}
	return relPath, nil
}

// Read returns the stored bytes for a relative path.
func (s *AttachmentStore) Read(relPath string) ([]byte, error) {
	full, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

// Exists reports whether content is stored at the relative path.
func (s *AttachmentStore) Exists(relPath string) bool {
	full, err := s.resolve(relPath)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(full)
	return statErr == nil
}

// URLFor resolves the public URL for a stored path.
func (s *AttachmentStore) URLFor(relPath string) string {
	return s.publicBaseURL + "/" + strings.TrimLeft(filepath.ToSlash(relPath), "/")
}

// resolve joins the relative path under the root and refuses traversal
// outside it.
func (s *AttachmentStore) resolve(relPath string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(relPath))
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid attachment path %q", relPath)
	}
	return filepath.Join(s.root, cleaned), nil
}
