// Package clients provides an HTTP client for the backend API, used by the
// wallet command line tool and by integration setups.
package clients

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/invisicipher/secure-image-backend/api"
)

// BackendClient talks to the backend HTTP API.
type BackendClient struct {
	// ServerAddr is the base URL of the backend server.
	ServerAddr string

	// Token is the bearer token attached to authenticated requests.
	Token string

	// HTTPClient defaults to http.DefaultClient when nil.
	HTTPClient *http.Client
}

func (c *BackendClient) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Challenge requests a sign-in challenge for the address.
func (c *BackendClient) Challenge(address string) (string, error) {
	var data api.ChallengeData
	err := c.doJSON(http.MethodGet, fmt.Sprintf("/api/auth/challenge/%s", address), nil, &data)
	if err != nil {
		return "", err
	}
	return data.Message, nil
}

// Register creates a profile for the address.
func (c *BackendClient) Register(req api.RegisterRequest) (*api.RegisterData, error) {
	var data api.RegisterData
	if err := c.doJSON(http.MethodPost, "/api/auth/register", req, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Authenticate completes the challenge-response flow and stores the issued
// token on the client for subsequent calls.
func (c *BackendClient) Authenticate(address, signature string) (*api.AuthenticateData, error) {
	var data api.AuthenticateData
	req := api.AuthenticateRequest{Address: address, Signature: signature}
	if err := c.doJSON(http.MethodPost, "/api/auth/login", req, &data); err != nil {
		return nil, err
	}
	c.Token = data.Token
	return &data, nil
}

// CheckUser reports whether the address is registered.
func (c *BackendClient) CheckUser(address string) (*api.CheckUserData, error) {
	var data api.CheckUserData
	if err := c.doJSON(http.MethodGet, fmt.Sprintf("/api/auth/check/%s", address), nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Store runs the store pipeline for a patient with the given cover and
// secret images. Requires an admin token.
func (c *BackendClient) Store(patientAddress string, cover, secret []byte) (*api.StoreData, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("patient_address", patientAddress); err != nil {
		return nil, err
	}
	for field, data := range map[string][]byte{"cover_image": cover, "secret_image": secret} {
		fw, err := writer.CreateFormFile(field, field+".png")
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(data); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.ServerAddr+"/api/images/store", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.setAuth(req)

	var data api.StoreData
	if err := c.do(req, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Retrieve downloads the hidden image behind a CID.
func (c *BackendClient) Retrieve(cid string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/api/images/retrieve/%s", c.ServerAddr, cid), nil)
	if err != nil {
		return nil, err
	}
	c.setAuth(req)

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not request retrieve endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	return io.ReadAll(resp.Body)
}

// Records lists the pipeline records for a patient address.
func (c *BackendClient) Records(address string) ([]api.RecordData, error) {
	var data []api.RecordData
	if err := c.doJSON(http.MethodGet, fmt.Sprintf("/api/records/%s", address), nil, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *BackendClient) setAuth(req *http.Request) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}

func (c *BackendClient) doJSON(method, path string, reqBody, out any) error {
	var body io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.ServerAddr+path, body)
	if err != nil {
		return err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuth(req)

	return c.do(req, out)
}

func (c *BackendClient) do(req *http.Request, out any) error {
	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("could not request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	var envelope api.Response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("could not parse response: %w", err)
	}
	if !envelope.Success {
		return fmt.Errorf("request failed: %s", envelope.Message)
	}
	if out == nil {
		return nil
	}

	// Round-trip the data payload into the caller's type.
	encoded, err := json.Marshal(envelope.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, out)
}

func decodeError(resp *http.Response) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("endpoint returned non-200 response: %d", resp.StatusCode)
	}
	var envelope api.Response
	if json.Unmarshal(bodyBytes, &envelope) == nil && envelope.Message != "" {
		return fmt.Errorf("endpoint returned error %d: %s", resp.StatusCode, envelope.Message)
	}
	return fmt.Errorf("endpoint returned error %d: %s", resp.StatusCode, string(bodyBytes))
}
