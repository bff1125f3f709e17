package profile

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DiskImageStore writes uploaded images to a local directory and exposes
// them under a public URL prefix.
type DiskImageStore struct {
	dir    string
	prefix string
}

// NewDiskImageStore constructs a DiskImageStore rooted at dir. Files are
// referenced as prefix/<name> in stored image paths.
func NewDiskImageStore(dir, prefix string) *DiskImageStore {
	return &DiskImageStore{dir: dir, prefix: strings.TrimRight(prefix, "/")}
}

// Save stores the image under a fresh random name and returns its public path.
func (s *DiskImageStore) Save(_ context.Context, ext string, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("profile: create upload dir: %w", err)
	}
	name := uuid.NewString()
	if ext != "" {
		name += "." + strings.TrimPrefix(ext, ".")
	}
	file, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("profile: create image file: %w", err)
	}
	defer file.Close()
	if _, err := io.Copy(file, r); err != nil {
		return "", fmt.Errorf("profile: write image: %w", err)
	}
	return s.prefix + "/" + name, nil
}

var _ ImageStore = (*DiskImageStore)(nil)
