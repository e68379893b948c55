package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client adapts the genai SDK to the narrow surface the studio consumes.
type Client struct {
	genai  *genai.Client
	logger *slog.Logger
}

func New(ctx context.Context, opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("api key is empty")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if baseURL := strings.TrimSpace(opts.BaseURL); baseURL != "" {
		cfg.HTTPOptions.BaseURL = strings.TrimRight(baseURL, "/")
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{genai: client, logger: logger}, nil
}

func (c *Client) GenerateContent(ctx context.Context, model string, parts []*genai.Part, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	c.logger.Debug("generate content", "model", model, "parts", len(parts))
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	return c.genai.Models.GenerateContent(ctx, model, contents, cfg)
}

func (c *Client) GenerateImages(ctx context.Context, model string, prompt string, cfg *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
	c.logger.Debug("generate images", "model", model)
	return c.genai.Models.GenerateImages(ctx, model, prompt, cfg)
}
