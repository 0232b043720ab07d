package main

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const uploadsURLPrefix = "/uploads"

// entropy feeds ULID generation for blob names. ulid.Monotonic is not safe
// for concurrent use, so reads are serialized.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

func newBlobName(originalName string) (string, error) {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", fmt.Errorf("error ulid.New: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(originalName))
	return id.String() + ext, nil
}

// fileStore keeps uploaded audio under <publicDir>/uploads and hands back
// the relative URL path stored on the song row.
type fileStore struct {
	publicDir string
}

func newFileStore(publicDir string) (*fileStore, error) {
	if strings.TrimSpace(publicDir) == "" {
		return nil, fmt.Errorf("public dir is required")
	}
	if err := os.MkdirAll(filepath.Join(publicDir, "uploads"), 0o755); err != nil {
		return nil, fmt.Errorf("error create uploads dir: %w", err)
	}
	return &fileStore{publicDir: publicDir}, nil
}

// Save writes the blob under a freshly generated unique name and returns
// its relative URL path (e.g. /uploads/01ARZ3NDEKTSV4RRFFQ69G5FAV.mp3).
func (f *fileStore) Save(originalName string, r io.Reader) (string, error) {
	name, err := newBlobName(originalName)
	if err != nil {
		return "", err
	}
	target := filepath.Join(f.publicDir, "uploads", name)
	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("error create blob file %s: %w", target, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return "", fmt.Errorf("error write blob file %s: %w", target, err)
	}
	return path.Join(uploadsURLPrefix, name), nil
}

// Delete removes the blob at the given relative URL path. Missing files are
// not an error: deletion is idempotent.
func (f *fileStore) Delete(relPath string) error {
	if relPath == "" {
		return nil
	}
	// path.Base strips any directory component, so a stored path can never
	// reach outside the uploads dir.
	target := filepath.Join(f.publicDir, "uploads", path.Base(relPath))
	if err := os.Remove(target); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("error remove blob file %s: %w", target, err)
	}
	return nil
}

func (f *fileStore) uploadsDir() string {
	return filepath.Join(f.publicDir, "uploads")
}
