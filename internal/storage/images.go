// Package storage keeps uploaded post images on local disk.
package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrUnsupportedType is returned when an upload is not a PNG or JPEG image.
var ErrUnsupportedType = errors.New("unsupported image type")

// allowedTypes are the declared mimetypes accepted for uploads.
var allowedTypes = map[string]bool{
	"image/png":  true,
	"image/jpg":  true,
	"image/jpeg": true,
}

// Images stores files in Dir. References handed out look like
// "<URLPrefix>/<file>", e.g. "images/3f0c...-cat.png".
type Images struct {
	Dir       string
	URLPrefix string
}

// NewImages creates dir if needed.
func NewImages(dir string) (*Images, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create images dir: %w", err)
	}
	return &Images{Dir: dir, URLPrefix: "images"}, nil
}

// Accepts reports whether contentType is an allowed image mimetype.
func (s *Images) Accepts(contentType string) bool {
	return allowedTypes[strings.ToLower(strings.TrimSpace(contentType))]
}

// Save writes r under a unique name derived from filename and returns its
// reference. The content itself must sniff as PNG or JPEG.
func (s *Images) Save(filename, contentType string, r io.Reader) (string, error) {
	if !s.Accepts(contentType) {
		return "", ErrUnsupportedType
	}

	br := bufio.NewReader(r)
	head, err := br.Peek(3072)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	detected := mimetype.Detect(head)
	if !detected.Is("image/png") && !detected.Is("image/jpeg") {
		return "", ErrUnsupportedType
	}

	name := uuid.NewString() + "-" + sanitize(filename)
	f, err := os.OpenFile(filepath.Join(s.Dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create image: %w", err)
	}
	if _, err := io.Copy(f, br); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close image: %w", err)
	}

	return path.Join(s.URLPrefix, name), nil
}

// Remove deletes the file behind ref. Only the base name is used so a
// reference can never point outside Dir.
func (s *Images) Remove(ref string) error {
	name := path.Base(filepath.ToSlash(ref))
	if name == "." || name == "/" || name == "" {
		return fmt.Errorf("invalid image reference %q", ref)
	}
	return os.Remove(filepath.Join(s.Dir, name))
}

// StoredImage describes one file in Dir.
type StoredImage struct {
	Ref     string
	ModTime time.Time
}

// List returns every regular file in Dir.
func (s *Images) List() ([]StoredImage, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}
	out := make([]StoredImage, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, StoredImage{Ref: path.Join(s.URLPrefix, e.Name()), ModTime: info.ModTime()})
	}
	return out, nil
}

func sanitize(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" {
		return "image"
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
