// Package openai provides an image provider backed by the OpenAI Images API.
package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/stephenhungg/flow/pkg/provider/image"
)

const defaultModel = "gpt-image-1"

// Provider implements image.Provider using the OpenAI Images API.
type Provider struct {
	client oai.Client
	model  string
}

// Compile-time interface assertion.
var _ image.Provider = (*Provider)(nil)

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout. Image generation is slow;
// the default client has no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI image Provider. model may be empty to use the
// default.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		model = defaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: model}, nil
}

// Generate implements image.Provider. The prompt asks for a clean single
// subject on a plain background, which converts to 3D far more reliably than
// a busy scene.
func (p *Provider) Generate(ctx context.Context, concept string) (*image.Image, error) {
	prompt := fmt.Sprintf(
		"A detailed, photorealistic render of %s as a single centered subject on a plain neutral background, studio lighting, no text.",
		concept,
	)

	resp, err := p.client.Images.Generate(ctx, oai.ImageGenerateParams{
		Model:  oai.ImageModel(p.model),
		Prompt: prompt,
		Size:   oai.ImageGenerateParamsSize1024x1024,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: generate image: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai: empty image response")
	}

	b64 := resp.Data[0].B64JSON
	if b64 == "" {
		return nil, fmt.Errorf("openai: image response carries no inline data")
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("openai: decode image payload: %w", err)
	}

	return &image.Image{Data: data, MIME: "image/png"}, nil
}
