// internal/upload/client.go
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	defaultAPIBase = "https://api.pinata.cloud"
	uploadTimeout  = 60 * time.Second

	// MaxFileSize bounds uploaded images.
	MaxFileSize = 5 * 1024 * 1024
)

// Client pins token images and metadata documents to IPFS through a Pinata
// style pinning service. The returned content-addressed URIs go on chain,
// so uploads must complete before the transaction builder runs.
type Client struct {
	apiBase string
	gateway string
	jwt     string
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(jwt, gateway string, logger *zap.Logger) *Client {
	return &Client{
		apiBase: defaultAPIBase,
		gateway: gateway,
		jwt:     jwt,
		http:    &http.Client{Timeout: uploadTimeout},
		logger:  logger.Named("upload"),
	}
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// PinFile pins raw file content and returns its gateway URI.
func (c *Client) PinFile(ctx context.Context, name string, content io.Reader) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("failed to create multipart body: %w", err)
	}
	written, err := io.Copy(part, io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read file content: %w", err)
	}
	if written > MaxFileSize {
		return "", fmt.Errorf("file exceeds %d byte limit", MaxFileSize)
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/pinning/pinFileToIPFS", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.jwt)

	hash, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("failed to pin file: %w", err)
	}
	return c.FileURL(hash), nil
}

// PinJSON pins a JSON document and returns its gateway URI.
func (c *Client) PinJSON(ctx context.Context, v interface{}) (string, error) {
	content, err := json.Marshal(map[string]interface{}{"pinataContent": v})
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/pinning/pinJSONToIPFS", bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.jwt)

	hash, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("failed to pin metadata: %w", err)
	}
	return c.FileURL(hash), nil
}

// FileURL builds the gateway URI for a pinned hash.
func (c *Client) FileURL(hash string) string {
	return fmt.Sprintf("%s/ipfs/%s", c.gateway, hash)
}

func (c *Client) do(req *http.Request) (string, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("pinning service returned status %d: %s", resp.StatusCode, raw)
	}

	var out pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("invalid pinning response: %w", err)
	}
	if out.IpfsHash == "" {
		return "", fmt.Errorf("pinning response missing hash")
	}
	return out.IpfsHash, nil
}
