package genai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	sdk "google.golang.org/genai"

	"headshot/internal/domain"
	"headshot/internal/infra"
	"headshot/internal/studio"
)

const (
	DefaultPreviewModel   = "gemini-2.5-flash-image"
	DefaultHighModel      = "gemini-3-pro-image-preview"
	DefaultValidatorModel = "gemini-2.5-flash-image"

	highImageSize   = "2K"
	highAspectRatio = "3:4"

	validationPrompt = `Analyze this image. Does it contain a real human person?
If YES, respond exactly with "YES".
If it shows an animal, an object, food, a cartoon or nothing recognisable as a human, respond with one short, witty sentence explaining why this subject cannot get a professional headshot.`
)

// KeySource resolves the API key used for a quality tier. An empty key with a
// nil error selects the synthetic renderer.
type KeySource interface {
	KeyFor(ctx context.Context, tier domain.QualityTier) (string, error)
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*sdk.Content, config *sdk.GenerateContentConfig) (*sdk.GenerateContentResponse, error)
}

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey         string
	Keys           KeySource
	BaseURL        string
	PreviewModel   string
	HighModel      string
	ValidatorModel string
	HTTPClient     *http.Client
	Logger         *infra.Logger
}

// Client edits and validates portraits through the Gemini API. Without any
// API key it renders deterministic synthetic results so the service stays
// usable in local and CI environments.
type Client struct {
	apiKey         string
	keys           KeySource
	baseURL        string
	previewModel   string
	highModel      string
	validatorModel string
	httpClient     *http.Client
	logger         *infra.Logger

	mu         sync.Mutex
	generators map[string]contentGenerator
	dial       func(ctx context.Context, apiKey string) (contentGenerator, error)
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one with sensible timeouts will be created.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	c := &Client{
		apiKey:         strings.TrimSpace(opts.APIKey),
		keys:           opts.Keys,
		baseURL:        strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		previewModel:   firstNonEmpty(opts.PreviewModel, DefaultPreviewModel),
		highModel:      firstNonEmpty(opts.HighModel, DefaultHighModel),
		validatorModel: firstNonEmpty(opts.ValidatorModel, DefaultValidatorModel),
		httpClient:     httpClient,
		logger:         logger,
		generators:     make(map[string]contentGenerator),
	}
	c.dial = c.dialSDK
	return c, nil
}

// Synthetic reports whether the client has no way to reach the remote API.
func (c *Client) Synthetic() bool {
	return c.apiKey == "" && c.keys == nil
}

// Model returns the model used for a tier.
func (c *Client) Model(tier domain.QualityTier) string {
	if tier == domain.TierHigh {
		return c.highModel
	}
	return c.previewModel
}

// EditImage sends the source photo and the instruction to the tier's model
// and returns the first inline image of the first candidate.
func (c *Client) EditImage(ctx context.Context, req studio.EditRequest) (domain.Image, error) {
	if err := ctx.Err(); err != nil {
		return domain.Image{}, err
	}
	key, err := c.keyFor(ctx, req.Tier)
	if err != nil {
		return domain.Image{}, err
	}
	if key == "" {
		return c.syntheticEdit(req)
	}

	gen, err := c.generator(ctx, key)
	if err != nil {
		return domain.Image{}, err
	}

	model := c.Model(req.Tier)
	var config *sdk.GenerateContentConfig
	if req.Tier == domain.TierHigh {
		config = &sdk.GenerateContentConfig{
			ImageConfig: &sdk.ImageConfig{
				ImageSize:   highImageSize,
				AspectRatio: highAspectRatio,
			},
		}
	}

	started := time.Now()
	resp, err := gen.GenerateContent(ctx, model, sourceContents(req.Source, req.Instruction), config)
	if err != nil {
		return domain.Image{}, fmt.Errorf("genai: generate content with %s: %w", model, err)
	}
	img, ok := firstInlineImage(resp)
	if !ok {
		return domain.Image{}, domain.ErrNoImageInResponse
	}

	c.logger.Debug().
		Str("style_id", req.StyleID).
		Str("model", model).
		Int("bytes", len(img.Data)).
		Dur("latency", time.Since(started)).
		Msg("genai: image edited")
	return img, nil
}

// ValidatePerson asks the validator model whether the photo shows a person.
func (c *Client) ValidatePerson(ctx context.Context, img domain.Image) (studio.Verdict, error) {
	key, err := c.keyFor(ctx, domain.TierPreview)
	if err != nil {
		return studio.Verdict{}, err
	}
	if key == "" {
		return studio.Verdict{Valid: true}, nil
	}
	gen, err := c.generator(ctx, key)
	if err != nil {
		return studio.Verdict{}, err
	}
	resp, err := gen.GenerateContent(ctx, c.validatorModel, sourceContents(img, validationPrompt), nil)
	if err != nil {
		return studio.Verdict{}, fmt.Errorf("genai: validate with %s: %w", c.validatorModel, err)
	}
	if resp == nil {
		return studio.Verdict{}, errors.New("genai: empty validation response")
	}
	return ParseVerdict(resp.Text()), nil
}

// ParseVerdict interprets the validator answer: any YES accepts the photo,
// anything else is the message shown to the user.
func ParseVerdict(answer string) studio.Verdict {
	answer = strings.TrimSpace(answer)
	if strings.Contains(strings.ToUpper(answer), "YES") {
		return studio.Verdict{Valid: true}
	}
	return studio.Verdict{Valid: false, Message: answer}
}

func (c *Client) keyFor(ctx context.Context, tier domain.QualityTier) (string, error) {
	if c.keys != nil {
		key, err := c.keys.KeyFor(ctx, tier)
		if err != nil {
			return "", fmt.Errorf("genai: resolve api key: %w", err)
		}
		if key = strings.TrimSpace(key); key != "" {
			return key, nil
		}
	}
	return c.apiKey, nil
}

func (c *Client) generator(ctx context.Context, key string) (contentGenerator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen, ok := c.generators[key]; ok {
		return gen, nil
	}
	gen, err := c.dial(ctx, key)
	if err != nil {
		return nil, err
	}
	c.generators[key] = gen
	return gen, nil
}

func (c *Client) dialSDK(ctx context.Context, apiKey string) (contentGenerator, error) {
	cfg := &sdk.ClientConfig{
		APIKey:     apiKey,
		Backend:    sdk.BackendGeminiAPI,
		HTTPClient: c.httpClient,
	}
	if c.baseURL != "" {
		cfg.HTTPOptions = sdk.HTTPOptions{BaseURL: c.baseURL}
	}
	client, err := sdk.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("genai: create client: %w", err)
	}
	return client.Models, nil
}

func sourceContents(src domain.Image, text string) []*sdk.Content {
	parts := []*sdk.Part{
		sdk.NewPartFromBytes(src.Data, firstNonEmpty(src.MIMEType, "image/png")),
		sdk.NewPartFromText(text),
	}
	return []*sdk.Content{sdk.NewContentFromParts(parts, sdk.RoleUser)}
}

func firstInlineImage(resp *sdk.GenerateContentResponse) (domain.Image, bool) {
	if resp == nil || len(resp.Candidates) == 0 {
		return domain.Image{}, false
	}
	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return domain.Image{}, false
	}
	for _, part := range candidate.Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		return domain.Image{
			Data:     part.InlineData.Data,
			MIMEType: firstNonEmpty(part.InlineData.MIMEType, "image/png"),
		}, true
	}
	return domain.Image{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
