package attachment

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}

func TestStore_SaveOpenRemove(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	store := New(dir, 1<<20)
	body := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{1}, 100)...)

	ref, err := store.Save(context.Background(), "photo.PNG", bytes.NewReader(body))
	req.NoError(err)
	req.True(strings.HasPrefix(ref, RefPrefix))
	req.True(strings.HasSuffix(ref, ".png"))

	rc, contentType, err := store.Open(filepath.Base(ref))
	req.NoError(err)
	got, err := io.ReadAll(rc)
	req.NoError(err)
	req.NoError(rc.Close())
	req.Equal(body, got)
	req.Equal("image/png", contentType)

	req.NoError(store.Remove(ref))
	_, _, err = store.Open(filepath.Base(ref))
	req.ErrorIs(err, ErrNotFound)

	// Removing twice or an unrelated ref is not an error
	req.NoError(store.Remove(ref))
	req.NoError(store.Remove("https://elsewhere/x.png"))
}

func TestStore_RejectsDisallowedAndMismatched(t *testing.T) {
	req := require.New(t)
	store := New(t.TempDir(), 1<<20)
	ctx := context.Background()

	_, err := store.Save(ctx, "run.exe", strings.NewReader("MZ"))
	req.ErrorIs(err, ErrNotAllowed)

	_, err = store.Save(ctx, "fake.png", strings.NewReader("just text pretending"))
	req.ErrorIs(err, ErrMismatch)

	ref, err := store.Save(ctx, "notes.txt", strings.NewReader("hello there"))
	req.NoError(err)
	req.True(strings.HasSuffix(ref, ".txt"))
}

func TestStore_RejectsOversizedAndCleansUp(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	store := New(dir, 10)

	_, err := store.Save(context.Background(), "big.txt", strings.NewReader(strings.Repeat("a", 64)))
	req.ErrorIs(err, ErrTooLarge)

	entries, err := os.ReadDir(dir)
	req.NoError(err)
	req.Empty(entries)
}

func TestStore_ServeEscapesPath(t *testing.T) {
	req := require.New(t)
	store := New(t.TempDir(), 1<<20)
	ref, err := store.Save(context.Background(), "a.txt", strings.NewReader("content"))
	req.NoError(err)

	rec := httptest.NewRecorder()
	store.Serve(rec, "../../"+filepath.Base(ref))
	req.Equal(http.StatusOK, rec.Code)
	req.Equal("content", rec.Body.String())

	rec = httptest.NewRecorder()
	store.Serve(rec, "missing.txt")
	req.Equal(http.StatusNotFound, rec.Code)
}

func TestAllowed(t *testing.T) {
	req := require.New(t)
	req.True(Allowed("x.JPG"))
	req.True(Allowed("doc.pdf"))
	req.False(Allowed("x.webp"))
	req.False(Allowed("noext"))
}
