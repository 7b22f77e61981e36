package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lumenkb/lumen/internal/util"
)

const (
	// DefaultEmbeddingModel is the model used when none is configured.
	DefaultEmbeddingModel = string(openai.SmallEmbedding3)
	// DefaultEmbeddingDimensions is the native dimension of text-embedding-3-small.
	DefaultEmbeddingDimensions = 1536
	// DefaultChatModel is the generation model used when none is configured.
	DefaultChatModel = openai.GPT4oMini

	// maxEmbeddingBatch bounds the number of inputs per embedding request.
	maxEmbeddingBatch = 64

	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has an unexpected dimension
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoAPIKey is returned when the OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
	// ErrEmptyResponse is returned when the API responds without content
	ErrEmptyResponse = errors.New("no content returned by model")
)

// Message is one entry of a chat-completion request.
type Message struct {
	Role    string // "system", "user" or "assistant"
	Content string
}

// API is the subset of the OpenAI SDK the client depends on.
type API interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config holds client settings. Zero values fall back to defaults.
type Config struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	Dimensions     int
	ChatModel      string
	VisionModel    string
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

// Client wraps the OpenAI API for embeddings, chat generation and image
// description. All calls retry transient transport failures with bounded
// exponential backoff.
type Client struct {
	api            API
	embeddingModel openai.EmbeddingModel
	dimensions     int
	chatModel      string
	visionModel    string
	maxAttempts    int
	retryBaseDelay time.Duration
}

// NewClient creates a client from explicit configuration.
func NewClient(cfg Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return newClientWithAPI(openai.NewClientWithConfig(clientCfg), cfg)
}

func newClientWithAPI(api API, cfg Config) *Client {
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultEmbeddingDimensions
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.ChatModel
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaultRetryBaseDelay
	}
	return &Client{
		api:            api,
		embeddingModel: openai.EmbeddingModel(cfg.EmbeddingModel),
		dimensions:     cfg.Dimensions,
		chatModel:      cfg.ChatModel,
		visionModel:    cfg.VisionModel,
		maxAttempts:    cfg.MaxAttempts,
		retryBaseDelay: cfg.RetryBaseDelay,
	}
}

// Dimensions returns the embedding dimensionality the client enforces.
// Indexer and retriever share this value; a mismatch with the stored index
// is a deployment error.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// EmbedText generates an embedding for a single text.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	vectors, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts generates embeddings for a batch of texts, preserving input
// order. Requests are split into API-sized batches.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyText
	}
	for _, t := range texts {
		if t == "" {
			return nil, ErrEmptyText
		}
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbeddingBatch {
		end := start + maxEmbeddingBatch
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          c.embeddingModel,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}

	var resp openai.EmbeddingResponse
	err := util.Retry(ctx, c.maxAttempts, c.retryBaseDelay, isRetryable, func() error {
		var callErr error
		resp, callErr = c.api.CreateEmbeddings(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		if len(data.Embedding) != c.dimensions {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, c.dimensions, len(data.Embedding))
		}
		vectors[i] = data.Embedding
	}

	return vectors, nil
}

// Generate runs one chat completion over the assembled messages and returns
// the assistant text.
func (c *Client) Generate(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", ErrEmptyText
	}

	req := openai.ChatCompletionRequest{
		Model:    c.chatModel,
		Messages: make([]openai.ChatCompletionMessage, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
	}

	return c.complete(ctx, req)
}

// DescribeImage asks the vision model for a textual description of an image.
// The description joins the turn's effective query text for retrieval and
// generation.
func (c *Client) DescribeImage(ctx context.Context, mimeType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyText
	}

	req := openai.ChatCompletionRequest{
		Model: c.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: "Describe the content of this image in a few sentences, focusing on any visible text, error codes or identifiers.",
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: dataURL(mimeType, data),
						},
					},
				},
			},
		},
	}

	return c.complete(ctx, req)
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	var resp openai.ChatCompletionResponse
	err := util.Retry(ctx, c.maxAttempts, c.retryBaseDelay, isRetryable, func() error {
		var callErr error
		resp, callErr = c.api.CreateChatCompletion(ctx, req)
		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}

	return resp.Choices[0].Message.Content, nil
}

func dataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// isRetryable reports whether an API error is transient. Rate limits and
// server-side failures are retried; other client errors are not.
func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}

	// Transport-level failures (connection reset, timeout) arrive as plain
	// errors from the HTTP client.
	return true
}
