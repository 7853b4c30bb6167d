package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"framesearch/internal/domain"
)

// CLIPEmbedder calls a CLIP inference server that exposes a jina-style
// /embeddings endpoint accepting text and base64 image inputs.
type CLIPEmbedder struct {
	apiKey    string
	model     string
	baseURL   string
	dimension int
	client    *http.Client
	limiter   *rate.Limiter
}

type embeddingRequest struct {
	Model string           `json:"model"`
	Input []embeddingInput `json:"input"`
}

type embeddingInput struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewCLIPEmbedder creates an embedder for one backend. apiKeyEnv may be empty
// for servers without authentication.
func NewCLIPEmbedder(baseURL, model, apiKeyEnv string, dimension int, timeout time.Duration) (*CLIPEmbedder, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("clip embedder: base URL is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("clip embedder: dimension must be positive")
	}

	var apiKey string
	if apiKeyEnv != "" {
		apiKey = os.Getenv(apiKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
		}
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &CLIPEmbedder{
		apiKey:    apiKey,
		model:     model,
		baseURL:   strings.TrimRight(baseURL, "/"),
		dimension: dimension,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// WithRateLimit caps requests to the inference server at perSecond.
// Zero or less leaves requests unthrottled.
func (e *CLIPEmbedder) WithRateLimit(perSecond float64) *CLIPEmbedder {
	if perSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	} else {
		e.limiter = nil
	}
	return e
}

func (e *CLIPEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", domain.ErrEncoding)
	}
	return e.embed(ctx, embeddingInput{Text: text})
}

func (e *CLIPEmbedder) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	if err := CheckImage(image); err != nil {
		return nil, err
	}
	return e.embed(ctx, embeddingInput{Image: base64.StdEncoding.EncodeToString(image)})
}

func (e *CLIPEmbedder) embed(ctx context.Context, input embeddingInput) ([]float32, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	reqBody := embeddingRequest{
		Model: e.model,
		Input: []embeddingInput{input},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", domain.ErrEncoding, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", domain.ErrEncoding, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: API returned status %d: %s", domain.ErrEncoding, resp.StatusCode, string(body))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200]
		}
		return nil, fmt.Errorf("%w: failed to parse response (body: %s): %w", domain.ErrEncoding, bodyPreview, err)
	}

	if embResp.Error != nil {
		return nil, fmt.Errorf("%w: API error: %s", domain.ErrEncoding, embResp.Error.Message)
	}
	if len(embResp.Data) == 0 {
		return nil, fmt.Errorf("%w: embedding returned empty result", domain.ErrEncoding)
	}

	vec := embResp.Data[0].Embedding
	if len(vec) != e.dimension {
		return nil, fmt.Errorf("%w: dimension mismatch: expected %d, got %d", domain.ErrEncoding, e.dimension, len(vec))
	}

	return Normalize(vec)
}

func (e *CLIPEmbedder) Dimension() int {
	return e.dimension
}

func (e *CLIPEmbedder) ModelName() string {
	return e.model
}
