package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"golang.org/x/time/rate"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"

	JinaEndpoint   = "https://api.jina.ai/v1/embeddings"
	OpenAIEndpoint = "https://api.openai.com/v1/embeddings"

	JinaDimension   = 1024
	OpenAIDimension = 1536

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0

	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// RemoteProvider calls an OpenAI-compatible /embeddings HTTP API. Jina and
// OpenAI share the request and response format.
type RemoteProvider struct {
	name       string
	endpoint   string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
	cache      *Cache
	limiter    *rate.Limiter
	retry      RetryConfig
}

type remoteDefaults struct {
	name      string
	endpoint  string
	model     string
	dimension int
	keyEnv    string
}

func newRemoteProvider(d remoteDefaults, params map[string]any, cache *Cache) (*RemoteProvider, error) {
	apiKey := paramString(params, ParamAPIKey)
	if apiKey == "" {
		apiKey = os.Getenv(d.keyEnv)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s needs %s or embedding_params.%s", ErrNoProviderEnabled, d.name, d.keyEnv, ParamAPIKey)
	}

	rps, err := paramFloat(params, ParamRateLimit)
	if err != nil {
		return nil, err
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}

	p := &RemoteProvider{
		name:      d.name,
		endpoint:  d.endpoint,
		apiKey:    apiKey,
		model:     d.model,
		dimension: d.dimension,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache:   cache,
		limiter: rate.NewLimiter(limit, 1),
		retry:   DefaultRetryConfig(),
	}
	if m := paramString(params, ParamModel); m != "" {
		p.model = m
	}
	if u := paramString(params, ParamBaseURL); u != "" {
		p.endpoint = u
	}
	if dim, err := paramInt(params, ParamDimension); err != nil {
		return nil, err
	} else if dim > 0 {
		p.dimension = dim
	}
	return p, nil
}

// NewJinaProvider creates an embedder backed by the Jina AI API.
func NewJinaProvider(params map[string]any, cache *Cache) (*RemoteProvider, error) {
	return newRemoteProvider(remoteDefaults{
		name:      ProviderJina,
		endpoint:  JinaEndpoint,
		model:     DefaultJinaModel,
		dimension: JinaDimension,
		keyEnv:    EnvJinaAPIKey,
	}, params, cache)
}

// NewOpenAIProvider creates an embedder backed by the OpenAI API.
func NewOpenAIProvider(params map[string]any, cache *Cache) (*RemoteProvider, error) {
	return newRemoteProvider(remoteDefaults{
		name:      ProviderOpenAI,
		endpoint:  OpenAIEndpoint,
		model:     DefaultOpenAIModel,
		dimension: OpenAIDimension,
		keyEnv:    EnvOpenAIAPIKey,
	}, params, cache)
}

func (p *RemoteProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{
		Texts: []string{req.Text},
		Model: req.Model,
	})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (p *RemoteProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	out := make([]*Embedding, len(req.Texts))
	var missing []int
	for i, text := range req.Texts {
		if p.cache != nil {
			if emb, ok := p.cache.Get(cacheKey(p.name, model, text)); ok {
				out[i] = emb
				continue
			}
		}
		missing = append(missing, i)
	}

	if len(missing) > 0 {
		texts := make([]string, len(missing))
		for j, i := range missing {
			texts[j] = req.Texts[i]
		}

		embeddings, err := retryWithBackoff(ctx, p.retry, func() ([]*Embedding, error) {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return p.callAPI(ctx, texts, model)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrProviderFailed, p.name, err)
		}
		if len(embeddings) != len(texts) {
			return nil, fmt.Errorf("%w: %s returned %d embeddings for %d texts", ErrProviderFailed, p.name, len(embeddings), len(texts))
		}

		for j, i := range missing {
			emb := embeddings[j]
			emb.Hash = cacheKey(p.name, model, req.Texts[i])
			if p.cache != nil {
				p.cache.Set(emb.Hash, emb)
			}
			out[i] = emb
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: out,
		Provider:   p.name,
		Model:      model,
	}, nil
}

func (p *RemoteProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	body, err := json.Marshal(map[string]interface{}{
		"input": texts,
		"model": model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &statusError{Code: resp.StatusCode, Body: string(bodyBytes)}
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// The API may return items out of order.
	sort.Slice(apiResp.Data, func(i, j int) bool {
		return apiResp.Data[i].Index < apiResp.Data[j].Index
	})

	embeddings := make([]*Embedding, len(apiResp.Data))
	for i, data := range apiResp.Data {
		embeddings[i] = &Embedding{
			Vector:    data.Embedding,
			Dimension: len(data.Embedding),
			Provider:  p.name,
			Model:     model,
		}
	}
	return embeddings, nil
}

func (p *RemoteProvider) Dimension() int {
	return p.dimension
}

func (p *RemoteProvider) Provider() string {
	return p.name
}

func (p *RemoteProvider) Model() string {
	return p.model
}

func (p *RemoteProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
