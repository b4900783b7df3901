// Package critic obtains schema-constrained critiques from the Gemini API.
package critic

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/siteroast/siteroast/internal/roast"
)

const instruction = "You are reviewing a website screenshot. Produce a witty, " +
	"sarcastic, but constructive critique of this screenshot. The caseFiles " +
	"section should be a detailed breakdown of at least 250 words."

const analysisFailedMsg = "analysis failed, please try again"

// Config holds the Gemini client settings.
type Config struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
}

// Client implements roast.Critic backed by the Gemini generateContent API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

var _ roast.Critic = (*Client)(nil)

// New builds a client from configuration.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMIMEType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Analyze sends the screenshot and the fixed instruction to Gemini with the
// critique response schema attached, then re-validates the decoded result
// independently of the provider's own enforcement. Provider error bodies are
// logged, never surfaced.
func (c *Client) Analyze(ctx context.Context, image []byte) (roast.Critique, error) {
	if c.cfg.APIKey == "" {
		return roast.Critique{}, roast.NewFailure(roast.KindGeneration, analysisFailedMsg, fmt.Errorf("gemini api key not configured"))
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{
			Parts: []part{
				{Text: instruction},
				{InlineData: &inlineData{
					MimeType: "image/jpeg",
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
		GenerationConfig: generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   critiqueSchema(),
		},
	})
	if err != nil {
		return roast.Critique{}, roast.NewFailure(roast.KindGeneration, analysisFailedMsg, fmt.Errorf("marshal gemini request: %w", err))
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimSuffix(c.cfg.Endpoint, "/"), c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return roast.Critique{}, roast.NewFailure(roast.KindGeneration, analysisFailedMsg, fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return roast.Critique{}, c.failure(fmt.Errorf("call gemini: %w", err))
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("close gemini response body", zap.Error(closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return roast.Critique{}, c.failure(fmt.Errorf("gemini status %s: %s", resp.Status, strings.TrimSpace(string(detail))))
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return roast.Critique{}, c.failure(fmt.Errorf("decode gemini response: %w", err))
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return roast.Critique{}, c.failure(fmt.Errorf("gemini returned no candidates"))
	}

	critique, err := roast.DecodeCritique([]byte(gr.Candidates[0].Content.Parts[0].Text))
	if err != nil {
		return roast.Critique{}, c.failure(err)
	}
	return critique, nil
}

// failure logs the full cause and returns the caller-safe generation failure.
func (c *Client) failure(cause error) *roast.Failure {
	c.logger.Error("critique generation failed", zap.Error(cause))
	return roast.NewFailure(roast.KindGeneration, analysisFailedMsg, cause)
}
