package tika

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
)

func TestExtractPathReturnsSanitizedText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tika", r.URL.Path)
		assert.Equal(t, "text/plain", r.Header.Get("Accept"))
		_, _ = w.Write([]byte("John  Doe\n\nSenior\tEngineer\x00"))
	}))
	defer srv.Close()

	root := t.TempDir()
	path := filepath.Join(root, "g1", "resumes")
	require.NoError(t, os.MkdirAll(path, 0o755))
	file := filepath.Join(path, "cv.txt")
	require.NoError(t, os.WriteFile(file, []byte("raw"), 0o644))

	c := New(srv.URL, root)
	got, err := c.ExtractPath(t.Context(), "cv.txt", file)
	require.NoError(t, err)
	assert.Equal(t, "John Doe Senior Engineer", got)
}

func TestExtractPathRejectsPathOutsideRoot(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(t.TempDir(), "cv.pdf")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))

	c := New("http://tika.invalid", root)
	_, err := c.ExtractPath(t.Context(), "cv.pdf", outside)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestExtractPathUnparsableDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	root := t.TempDir()
	file := filepath.Join(root, "broken.pdf")
	require.NoError(t, os.WriteFile(file, []byte("not a pdf"), 0o644))

	c := New(srv.URL, root)
	_, err := c.ExtractPath(t.Context(), "broken.pdf", file)
	require.ErrorIs(t, err, domain.ErrParseFailure)
}

func TestContentTypeSniffsUnknownExtensions(t *testing.T) {
	assert.Equal(t, "application/pdf", contentType("cv.pdf", nil))
	assert.Equal(t, "text/plain", contentType("cv.txt", nil))
	// %PDF magic bytes win when the name has no extension
	assert.Contains(t, contentType("resume", []byte("%PDF-1.7 rest")), "application/pdf")
}
