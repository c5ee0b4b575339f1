package transform

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invisicipher/secure-image-backend/apperr"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_Embed(t *testing.T) {
	stego := []byte("stego image bytes")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/hide_image", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		cover, _, err := r.FormFile("cover_image")
		require.NoError(t, err)
		coverData, _ := io.ReadAll(cover)
		assert.Equal(t, []byte("cover"), coverData)

		secret, _, err := r.FormFile("secret_image")
		require.NoError(t, err)
		secretData, _ := io.ReadAll(secret)
		assert.Equal(t, []byte("secret"), secretData)

		json.NewEncoder(w).Encode(map[string]any{
			"success":     true,
			"stego_image": base64.StdEncoding.EncodeToString(stego),
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", testLogger())
	got, err := client.Embed(context.Background(), []byte("cover"), []byte("secret"))
	require.NoError(t, err)
	assert.Equal(t, stego, got)
}

func TestClient_Reveal(t *testing.T) {
	revealed := []byte("revealed secret")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/reveal_image", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		_, _, err := r.FormFile("steg_image")
		require.NoError(t, err)

		json.NewEncoder(w).Encode(map[string]any{
			"success":        true,
			"revealed_image": base64.StdEncoding.EncodeToString(revealed),
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", testLogger())
	got, err := client.Reveal(context.Background(), []byte("stego"))
	require.NoError(t, err)
	assert.Equal(t, revealed, got)
}

func TestClient_EncryptDecrypt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, _, err := r.FormFile("image")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)

		resp := map[string]any{"success": true}
		switch r.URL.Path {
		case "/encrypt":
			resp["encrypted_image"] = base64.StdEncoding.EncodeToString(append([]byte("enc:"), data...))
		case "/decrypt":
			resp["decrypted_image"] = base64.StdEncoding.EncodeToString(data[4:])
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewClient("", srv.URL, testLogger())

	plain := []byte("plain image")
	enc, err := client.Encrypt(context.Background(), plain)
	require.NoError(t, err)
	assert.Equal(t, append([]byte("enc:"), plain...), enc)

	dec, err := client.Decrypt(context.Background(), enc)
	require.NoError(t, err)
	assert.Equal(t, plain, dec)
}

func TestClient_ServiceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "model not loaded",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", testLogger())
	_, err := client.Embed(context.Background(), []byte("c"), []byte("s"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindDependency, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestClient_Unreachable(t *testing.T) {
	// Port that nothing listens on.
	client := NewClient("http://127.0.0.1:1", "", testLogger())
	_, err := client.Reveal(context.Background(), []byte("stego"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindDependency, apperr.KindOf(err))
}

func TestClient_MissingImageField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer srv.Close()

	client := NewClient("", srv.URL, testLogger())
	_, err := client.Encrypt(context.Background(), []byte("img"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encrypted_image")
}
