// internal/upload/metadata.go
package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/solmintlabs/solmint/internal/token"
)

// Attribute is one trait entry in the off-chain metadata document.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

type fileRef struct {
	URI  string `json:"uri"`
	Type string `json:"type"`
}

type properties struct {
	Files    []fileRef `json:"files"`
	Category string    `json:"category"`
	Creators []string  `json:"creators"`
}

type extensions struct {
	Website  string `json:"website,omitempty"`
	Telegram string `json:"telegram,omitempty"`
	Twitter  string `json:"twitter,omitempty"`
}

// Metadata is the off-chain JSON document the on-chain URI points at.
type Metadata struct {
	Name        string      `json:"name"`
	Symbol      string      `json:"symbol"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes"`
	Properties  properties  `json:"properties"`
	ExternalURL string      `json:"external_url,omitempty"`
	Extensions  extensions  `json:"extensions"`
}

// BuildMetadata assembles the metadata document for a request, folding the
// social links into both attributes and extensions the way explorers expect.
func BuildMetadata(req *token.Request, imageURI string) *Metadata {
	m := &Metadata{
		Name:        req.Name,
		Symbol:      req.Symbol,
		Description: req.Description,
		Image:       imageURI,
		Attributes:  []Attribute{},
		Properties: properties{
			Files:    []fileRef{{URI: imageURI, Type: "image/png"}},
			Category: "image",
			Creators: []string{},
		},
		ExternalURL: req.WebsiteURL,
		Extensions: extensions{
			Website:  req.WebsiteURL,
			Telegram: req.TelegramURL,
			Twitter:  req.TwitterURL,
		},
	}
	if req.WebsiteURL != "" {
		m.Attributes = append(m.Attributes, Attribute{TraitType: "Website", Value: req.WebsiteURL})
	}
	if req.TelegramURL != "" {
		m.Attributes = append(m.Attributes, Attribute{TraitType: "Telegram", Value: req.TelegramURL})
	}
	if req.TwitterURL != "" {
		m.Attributes = append(m.Attributes, Attribute{TraitType: "Twitter", Value: req.TwitterURL})
	}
	return m
}

// UploadTokenMetadata pins the image (when given) and the metadata document,
// returning the metadata URI to embed on chain.
func (c *Client) UploadTokenMetadata(ctx context.Context, req *token.Request, imagePath, defaultImageURI string) (string, error) {
	imageURI := defaultImageURI
	if imagePath != "" {
		f, err := os.Open(imagePath)
		if err != nil {
			return "", fmt.Errorf("failed to open image: %w", err)
		}
		defer f.Close()

		imageURI, err = c.PinFile(ctx, filepath.Base(imagePath), f)
		if err != nil {
			return "", err
		}
		c.logger.Info("Image pinned", zap.String("uri", imageURI))
	}

	uri, err := c.PinJSON(ctx, BuildMetadata(req, imageURI))
	if err != nil {
		return "", err
	}
	c.logger.Info("Metadata pinned", zap.String("uri", uri))
	return uri, nil
}
