// Package gemini generates product images with Google's Gemini image models.
package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	stdimage "image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"productshot/internal/domain"
	"productshot/internal/providers/image"
)

// DefaultModel is used when Options.Model is empty.
const DefaultModel = "gemini-2.5-flash-image"

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey string
	Model  string
	Logger zerolog.Logger
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client turns an instruction and a source photo into a generated image.
type Client struct {
	client    *genai.Client
	model     contentGenerator
	modelName string
	logger    zerolog.Logger
}

// NewClient connects to the Gemini API.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	name := strings.TrimSpace(opts.Model)
	if name == "" {
		name = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	model := client.GenerativeModel(name)
	model.SetCandidateCount(1)
	return &Client{
		client:    client,
		model:     model,
		modelName: name,
		logger:    opts.Logger.With().Str("provider", "gemini").Str("model", name).Logger(),
	}, nil
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.modelName
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Generate sends the instruction with the input photo and returns the first
// image part of the response. Every failure wraps domain.ErrProviderFailure.
func (c *Client) Generate(ctx context.Context, req image.Request) (*image.Output, error) {
	parts := []genai.Part{genai.Text(req.Instruction)}
	if len(req.Input) > 0 {
		mime := req.InputMIME
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, genai.Blob{MIMEType: mime, Data: req.Input})
	}

	resp, err := c.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini generate: %w", domain.ErrProviderFailure, err)
	}
	out, err := extractImage(resp)
	if err != nil {
		c.logger.Warn().Err(err).Str("job_id", req.JobID).Msg("gemini returned no usable image")
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderFailure, err)
	}
	if out.Width == 0 || out.Height == 0 {
		out.Width, out.Height = req.Width, req.Height
	}
	c.logger.Debug().
		Str("job_id", req.JobID).
		Int("bytes", len(out.Data)).
		Str("mime", out.MIME).
		Msg("gemini generated image")
	return out, nil
}

func extractImage(resp *genai.GenerateContentResponse) (*image.Output, error) {
	if resp == nil {
		return nil, image.ErrEmptyOutput
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return nil, fmt.Errorf("gemini: prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	var text []string
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			switch p := part.(type) {
			case genai.Blob:
				if len(p.Data) == 0 || !strings.HasPrefix(p.MIMEType, "image/") {
					continue
				}
				w, h := decodeImageDimensions(p.Data)
				return &image.Output{Data: p.Data, MIME: p.MIMEType, Width: w, Height: h}, nil
			case genai.Text:
				if s := strings.TrimSpace(string(p)); s != "" {
					text = append(text, s)
				}
			}
		}
	}
	if len(text) > 0 {
		return nil, fmt.Errorf("%w: model replied with text: %s", image.ErrEmptyOutput, truncate(strings.Join(text, " "), 200))
	}
	return nil, image.ErrEmptyOutput
}

func decodeImageDimensions(data []byte) (int, int) {
	cfg, _, err := stdimage.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ image.Generator = (*Client)(nil)
