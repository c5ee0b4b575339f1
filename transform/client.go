// Package transform provides an HTTP client for the image transformation
// services. Two sidecar services are involved: a steganography service that
// embeds and reveals hidden images, and an encryption service that encrypts
// and decrypts image payloads. Both accept multipart uploads and respond
// with base64-encoded results.
package transform

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/invisicipher/secure-image-backend/apperr"
)

// Default service endpoints, matching the transformation sidecars'
// standard ports.
const (
	DefaultStegoURL  = "http://127.0.0.1:5000"
	DefaultCryptoURL = "http://127.0.0.1:5002"
)

// Client implements interfaces.TransformService against the two sidecar
// services over HTTP.
type Client struct {
	stegoURL   string
	cryptoURL  string
	httpClient *http.Client
	log        *slog.Logger
}

// transformResponse is the envelope both services respond with. Exactly one
// of the image fields is populated depending on the operation.
type transformResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	StegoImage     string `json:"stego_image,omitempty"`
	RevealedImage  string `json:"revealed_image,omitempty"`
	EncryptedImage string `json:"encrypted_image,omitempty"`
	DecryptedImage string `json:"decrypted_image,omitempty"`
}

// NewClient creates a transform client for the given service base URLs.
// Empty URLs fall back to the defaults.
func NewClient(stegoURL, cryptoURL string, log *slog.Logger) *Client {
	if stegoURL == "" {
		stegoURL = DefaultStegoURL
	}
	if cryptoURL == "" {
		cryptoURL = DefaultCryptoURL
	}
	return &Client{
		stegoURL:   stegoURL,
		cryptoURL:  cryptoURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		log:        log,
	}
}

// Embed hides the secret image inside the cover image and returns the
// resulting stego image.
func (c *Client) Embed(ctx context.Context, cover, secret []byte) ([]byte, error) {
	fields := []filePart{
		{field: "cover_image", filename: "cover.png", data: cover},
		{field: "secret_image", filename: "secret.png", data: secret},
	}
	resp, err := c.post(ctx, c.stegoURL+"/hide_image", fields)
	if err != nil {
		return nil, err
	}
	return decodeImage(resp.StegoImage, "stego_image")
}

// Reveal extracts the hidden image from a stego image.
func (c *Client) Reveal(ctx context.Context, stego []byte) ([]byte, error) {
	fields := []filePart{
		{field: "steg_image", filename: "stego.png", data: stego},
	}
	resp, err := c.post(ctx, c.stegoURL+"/reveal_image", fields)
	if err != nil {
		return nil, err
	}
	return decodeImage(resp.RevealedImage, "revealed_image")
}

// Encrypt encrypts an image payload.
func (c *Client) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	fields := []filePart{
		{field: "image", filename: "image.png", data: plaintext},
	}
	resp, err := c.post(ctx, c.cryptoURL+"/encrypt", fields)
	if err != nil {
		return nil, err
	}
	return decodeImage(resp.EncryptedImage, "encrypted_image")
}

// Decrypt decrypts a previously encrypted image payload.
func (c *Client) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	fields := []filePart{
		{field: "image", filename: "image.png", data: ciphertext},
	}
	resp, err := c.post(ctx, c.cryptoURL+"/decrypt", fields)
	if err != nil {
		return nil, err
	}
	return decodeImage(resp.DecryptedImage, "decrypted_image")
}

type filePart struct {
	field    string
	filename string
	data     []byte
}

func (c *Client) post(ctx context.Context, url string, parts []filePart) (*transformResponse, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, p := range parts {
		fw, err := writer.CreateFormFile(p.field, p.filename)
		if err != nil {
			return nil, fmt.Errorf("failed to create multipart field %s: %w", p.field, err)
		}
		if _, err := fw.Write(p.data); err != nil {
			return nil, fmt.Errorf("failed to write multipart field %s: %w", p.field, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Dependency("transformation service unreachable", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, apperr.Dependency("failed to read transformation response", err)
	}

	c.log.Debug("Transformation call completed",
		slog.String("url", url),
		slog.Int("status", httpResp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	var resp transformResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, apperr.Dependency(
			fmt.Sprintf("invalid transformation response (status %d)", httpResp.StatusCode), err)
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = fmt.Sprintf("transformation failed with status %d", httpResp.StatusCode)
		}
		return nil, apperr.Dependency(msg, nil)
	}
	return &resp, nil
}

func decodeImage(encoded, field string) ([]byte, error) {
	if encoded == "" {
		return nil, apperr.Dependency(fmt.Sprintf("transformation response missing %s", field), nil)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperr.Dependency(fmt.Sprintf("transformation response has invalid %s encoding", field), err)
	}
	return data, nil
}
