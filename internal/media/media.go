// Package media writes audio payloads into the collection's media folder.
package media

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// ErrWrite is returned when a media file cannot be written.
var ErrWrite = errors.New("media write failed")

// DirName is the media folder the host application keeps next to the
// collection file.
const DirName = "collection.media"

// DefaultDir returns the media folder for the collection at dbPath.
func DefaultDir(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), DirName)
}

// FileName derives a filesystem-safe name from the card front. The same
// front always maps to the same name.
func FileName(prefix, front, ext string) string {
	sum := sha1.Sum([]byte(front))
	return prefix + hex.EncodeToString(sum[:8]) + ext
}

// SoundRef returns the field markup that plays filename.
func SoundRef(filename string) string {
	return "[sound:" + filename + "]"
}

// Write creates or replaces dir/filename with data. The write is atomic: a
// reader sees either the old file or the complete new one.
func Write(dir, filename string, data []byte) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.ContainsAny(filename, `/\`) {
		return "", fmt.Errorf("%w: invalid file name %q", ErrWrite, filename)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create %s: %v", ErrWrite, dir, err)
	}

	path := filepath.Join(dir, filename)
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}
	return path, nil
}
