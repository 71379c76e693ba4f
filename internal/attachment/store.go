// Package attachment stores message attachments on disk, gzipped, under uuid names.
package attachment

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/chatroom/internal/logger"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// RefPrefix is the URL path under which stored attachments are served.
const RefPrefix = "/uploads/"

var (
	ErrNotAllowed = errors.New("file type not allowed")
	ErrMismatch   = errors.New("file content does not match type")
	ErrTooLarge   = errors.New("file too large")
	ErrNotFound   = errors.New("file not found")
)

// allowed maps an extension to the MIME types its content may sniff as.
var allowed = map[string][]string{
	".png":  {"image/png"},
	".jpg":  {"image/jpeg"},
	".jpeg": {"image/jpeg"},
	".gif":  {"image/gif"},
	".pdf":  {"application/pdf"},
	".txt":  {"text/plain"},
}

func Allowed(filename string) bool {
	_, ok := allowed[strings.ToLower(filepath.Ext(filename))]
	return ok
}

type Store struct {
	dir     string
	maxSize int64
}

func New(dir string, maxSize int64) *Store {
	return &Store{dir: dir, maxSize: maxSize}
}

// Save validates and stores one file, returning its ref (/uploads/<uuid><ext>).
func (s *Store) Save(ctx context.Context, filename string, src io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(strings.ReplaceAll(filename, "+", " ")))
	accepts, ok := allowed[ext]
	if !ok {
		return "", ErrNotAllowed
	}

	head := make([]byte, 3072)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("attachment.Save read: %w", err)
	}
	head = head[:n]
	if !matches(mimetype.Detect(head), accepts) {
		return "", ErrMismatch
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("attachment.Save mkdir: %w", err)
	}
	name := uuid.NewString() + ext
	dstPath := s.path(name)
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("attachment.Save create: %w", err)
	}

	gz := gzip.NewWriter(dst)
	var body io.Reader = io.MultiReader(bytes.NewReader(head), src)
	if s.maxSize > 0 {
		body = io.LimitReader(body, s.maxSize+1)
	}
	written, copyErr := copyWithContext(ctx, gz, body)
	closeErr := errors.Join(gz.Close(), dst.Close())
	switch {
	case copyErr != nil:
		os.Remove(dstPath)
		return "", fmt.Errorf("attachment.Save copy: %w", copyErr)
	case s.maxSize > 0 && written > s.maxSize:
		os.Remove(dstPath)
		return "", ErrTooLarge
	case closeErr != nil:
		os.Remove(dstPath)
		return "", fmt.Errorf("attachment.Save close: %w", closeErr)
	}
	return RefPrefix + name, nil
}

func matches(detected *mimetype.MIME, accepts []string) bool {
	for _, m := range accepts {
		if detected.Is(m) {
			return true
		}
	}
	return false
}

// Remove deletes the file behind ref. Unknown refs are ignored.
func (s *Store) Remove(ref string) error {
	name, ok := nameFromRef(ref)
	if !ok {
		return nil
	}
	err := os.Remove(s.path(name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("attachment.Remove: %w", err)
	}
	return nil
}

// RemoveAll deletes attachments; failures are only logged.
func (s *Store) RemoveAll(refs []string) {
	for _, ref := range refs {
		if err := s.Remove(ref); err != nil {
			logger.Errorf("attachment remove %s: %v", ref, err)
		}
	}
}

// Open returns the decompressed content of a stored file.
func (s *Store) Open(name string) (io.ReadCloser, string, error) {
	name = filepath.Base(name)
	f, err := os.Open(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("attachment.Open: %w", err)
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, "", fmt.Errorf("attachment.Open gzip: %w", err)
	}
	return &gzipFile{Reader: gz, f: f}, contentTypeByExt(filepath.Ext(name)), nil
}

// Serve writes the named file with a Content-Type taken from its extension.
func (s *Store) Serve(w http.ResponseWriter, name string) {
	rc, contentType, err := s.Open(name)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Errorf("attachment serve %s: %v", name, err)
		http.Error(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	defer rc.Close()
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		logger.Debugf("attachment serve %s: %v", name, err)
	}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".gz")
}

func nameFromRef(ref string) (string, bool) {
	if !strings.HasPrefix(ref, RefPrefix) {
		return "", false
	}
	name := filepath.Base(strings.TrimPrefix(ref, RefPrefix))
	if name == "." || name == "/" || name == "" {
		return "", false
	}
	return name, true
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	return errors.Join(g.Reader.Close(), g.f.Close())
}

func contentTypeByExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain; charset=utf-8"
	}
	return "application/octet-stream"
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, fmt.Errorf("upload cancelled: %w", err)
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return total, fmt.Errorf("write: %w", err)
			}
			total += int64(n)
		}
		if readErr == io.EOF {
			return total, nil
		}
		if readErr != nil {
			return total, fmt.Errorf("read: %w", readErr)
		}
	}
}
