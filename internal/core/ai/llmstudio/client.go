package llmstudio

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"paint-mixer/internal/core/ai/provider"
	"paint-mixer/internal/pkg/common"
)

const (
	// Name provider 名稱
	Name = "llmstudio"
	// DefaultModel 未設定 AI_MODEL 時使用的模型
	DefaultModel = "deepseek-coder-v2-lite-16b"

	defaultAPIKey        = "not-needed"
	defaultTimeout       = 2 * time.Minute
	defaultHealthTimeout = 30 * time.Second
	chatCompletionsPath  = "/v1/chat/completions"
	systemPrompt         = "You are a paint mixing expert for model painting and miniatures. Respond ONLY with valid JSON."
	displayName          = "LLMStudio"
)

var _ provider.Provider = (*Client)(nil)

// Config 本地模型設定
type Config struct {
	URL           string
	APIKey        string
	Model         string
	Timeout       time.Duration
	HealthTimeout time.Duration
}

// Message 消息結構
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request chat-completions 請求
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Response chat-completions 響應
type Response struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice 選擇結構
type Choice struct {
	Message Message `json:"message"`
}

// Usage 使用量信息
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Client 透過 OpenAI 相容 REST 端點呼叫本地模型
type Client struct {
	provider.Base

	baseURL       string
	model         string
	apiKey        string
	timeout       time.Duration
	healthTimeout time.Duration
	http          *resty.Client
}

// NewClient 創建本地模型客戶端；URL 為必填
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, common.NewConfigurationError("LLMStudio URL is required (e.g., http://192.168.0.81:1234)")
	}

	c := &Client{
		baseURL:       strings.TrimSuffix(cfg.URL, "/"),
		model:         cfg.Model,
		apiKey:        cfg.APIKey,
		timeout:       cfg.Timeout,
		healthTimeout: cfg.HealthTimeout,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.apiKey == "" {
		c.apiKey = defaultAPIKey
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.healthTimeout <= 0 {
		c.healthTimeout = defaultHealthTimeout
	}

	c.http = resty.New().
		SetBaseURL(c.baseURL).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(c.apiKey)

	return c, nil
}

// Info provider 資訊
func (c *Client) Info() provider.Info {
	return provider.Info{
		Name:      Name,
		Model:     c.model,
		Transport: provider.TransportREST,
		BaseURL:   c.baseURL,
	}
}

// Ready 有 base URL 即可使用
func (c *Client) Ready() bool {
	return c != nil && c.baseURL != "" && c.http != nil
}

// BuildPrompt 本地模型使用較嚴格的指示
func (c *Client) BuildPrompt(targetBrand, targetName string, palette []provider.PaletteEntry) string {
	return provider.BuildPrompt(provider.StyleLocal, targetBrand, targetName, palette)
}

// GenerateMix 生成混色食譜
func (c *Client) GenerateMix(ctx context.Context, targetBrand, targetName string, palette []provider.PaletteEntry) (*provider.Recipe, error) {
	return provider.Generate(ctx, c, targetBrand, targetName, palette)
}

// Complete 送出 system+user 訊息並回傳模型文字
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.post(ctx, c.timeout, &Request{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   2048,
		Temperature: 0.7,
	})
}

// TestConnection 以極短回應測試連線
func (c *Client) TestConnection(ctx context.Context) provider.ConnectionStatus {
	start := time.Now()
	text, err := c.post(ctx, c.healthTimeout, &Request{
		Model:     c.model,
		Messages:  []Message{{Role: "user", Content: provider.ConnectionTestPrompt}},
		MaxTokens: 5,
	})
	return provider.NewConnectionStatus(c.Info(), c.keyPreview(), time.Since(start), text, err)
}

func (c *Client) keyPreview() string {
	if c.apiKey == defaultAPIKey {
		return "not-required"
	}
	return common.MaskSecret(c.apiKey, "not-required")
}

func (c *Client) post(ctx context.Context, timeout time.Duration, req *Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	common.LogDebug("Sending request to LLMStudio",
		zap.String("model", req.Model),
		zap.String("base_url", c.baseURL),
		zap.Int("messages", len(req.Messages)),
	)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post(chatCompletionsPath)
	if err != nil {
		return "", &common.TransportError{Provider: displayName, Err: err}
	}

	if !resp.IsSuccess() {
		return "", &common.TransportError{
			Provider:   displayName,
			StatusCode: resp.StatusCode(),
			Body:       common.Truncate(resp.String(), 500),
		}
	}

	var result Response
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return "", &common.TransportError{Provider: displayName, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if len(result.Choices) == 0 {
		return "", &common.TransportError{Provider: displayName, Err: fmt.Errorf("no choices in response")}
	}

	return result.Choices[0].Message.Content, nil
}
