package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coffre/internal/services/filestore"
)

func TestServeUpload(t *testing.T) {
	root := filepath.Join(t.TempDir(), "uploads")
	// temp root deliberately inside the served root: the worst placement
	// the handler must still keep unreachable
	store := filestore.New(root, filepath.Join(root, "tmp"), "http://localhost")

	src := filepath.Join(t.TempDir(), "src.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.4 ciphertext"), 0o600))
	stored, err := store.Save(src, filestore.KindEncrypted, "contrat.pdf")
	require.NoError(t, err)

	tmp, err := store.TempPath(".pdf")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(tmp, []byte("decrypted plaintext"), 0o600))

	r := chi.NewRouter()
	r.Get("/uploads/*", ServeUpload(store))
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	get := func(t *testing.T, path string) (*http.Response, string) {
		t.Helper()
		resp, err := http.Get(server.URL + path)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		resp.Body.Close()
		return resp, string(body)
	}

	t.Run("stored file is served", func(t *testing.T) {
		resp, body := get(t, "/uploads/"+stored.RelativePath)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "%PDF-1.4 ciphertext", body)
	})

	t.Run("no directory listings", func(t *testing.T) {
		dir := filepath.ToSlash(filepath.Dir(stored.RelativePath))
		for _, p := range []string{"/uploads/", "/uploads/encrypted", "/uploads/encrypted/", "/uploads/" + dir} {
			resp, body := get(t, p)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode, p)
			assert.NotContains(t, body, stored.Filename, p)
		}
	})

	t.Run("temp area is unreachable", func(t *testing.T) {
		resp, body := get(t, "/uploads/tmp/"+filepath.Base(tmp))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.NotContains(t, body, "decrypted plaintext")
	})

	t.Run("traversal is rejected", func(t *testing.T) {
		resp, _ := get(t, "/uploads/..%2f..%2fetc%2fpasswd")
		assert.NotEqual(t, http.StatusOK, resp.StatusCode)
	})
}
