package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"paint-mixer/internal/core/ai/provider"
	"paint-mixer/internal/pkg/common"
)

const (
	// Name provider 名稱
	Name = "gemini"
	// DefaultModel 未設定 AI_MODEL 時使用的模型
	DefaultModel = "gemini-1.5-flash"

	defaultTimeout       = 60 * time.Second
	defaultHealthTimeout = 30 * time.Second
	displayName          = "Gemini"
)

var _ provider.Provider = (*Client)(nil)

// Config 雲端模型設定
type Config struct {
	APIKey        string
	Model         string
	Timeout       time.Duration
	HealthTimeout time.Duration
}

// contentGenerator SDK 的最小介面，測試時替換
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client 透過 Google Generative AI SDK 呼叫 Gemini
type Client struct {
	provider.Base

	apiKey        string
	modelName     string
	timeout       time.Duration
	healthTimeout time.Duration
	sdk           *genai.Client
	model         contentGenerator
}

// NewClient 創建 Gemini 客戶端；API key 為必填
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, common.NewConfigurationError("Gemini API key is required")
	}

	sdk, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := newClient(cfg, nil)
	c.sdk = sdk
	c.model = sdk.GenerativeModel(c.modelName)
	return c, nil
}

func newClient(cfg Config, model contentGenerator) *Client {
	c := &Client{
		apiKey:        cfg.APIKey,
		modelName:     cfg.Model,
		timeout:       cfg.Timeout,
		healthTimeout: cfg.HealthTimeout,
		model:         model,
	}
	if c.modelName == "" {
		c.modelName = DefaultModel
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.healthTimeout <= 0 {
		c.healthTimeout = defaultHealthTimeout
	}
	return c
}

// Info provider 資訊
func (c *Client) Info() provider.Info {
	return provider.Info{
		Name:      Name,
		Model:     c.modelName,
		Transport: provider.TransportSDK,
	}
}

// Ready 模型 handle 存在才可使用
func (c *Client) Ready() bool {
	return c != nil && c.model != nil
}

// BuildPrompt 雲端模型在每行末尾附上 [ID: ...]
func (c *Client) BuildPrompt(targetBrand, targetName string, palette []provider.PaletteEntry) string {
	return provider.BuildPrompt(provider.StyleCloud, targetBrand, targetName, palette)
}

// GenerateMix 生成混色食譜
func (c *Client) GenerateMix(ctx context.Context, targetBrand, targetName string, palette []provider.PaletteEntry) (*provider.Recipe, error) {
	return provider.Generate(ctx, c, targetBrand, targetName, palette)
}

// Complete 送出單一 prompt 並回傳文字
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, c.timeout, prompt)
}

// TestConnection 健康檢查
func (c *Client) TestConnection(ctx context.Context) provider.ConnectionStatus {
	start := time.Now()
	text, err := c.generate(ctx, c.healthTimeout, provider.ConnectionTestPrompt)
	return provider.NewConnectionStatus(c.Info(), common.MaskSecret(c.apiKey, "not-set"), time.Since(start), text, err)
}

// Close 關閉 SDK 連線
func (c *Client) Close() error {
	if c.sdk == nil {
		return nil
	}
	return c.sdk.Close()
}

func (c *Client) generate(ctx context.Context, timeout time.Duration, prompt string) (string, error) {
	if !c.Ready() {
		return "", &common.TransportError{Provider: displayName, Err: fmt.Errorf("model is not initialized")}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	common.LogDebug("Sending request to Gemini",
		zap.String("model", c.modelName),
		zap.Int("prompt_length", len(prompt)),
	)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", &common.TransportError{Provider: displayName, Err: err}
	}

	text := responseText(resp)
	if text == "" {
		return "", &common.TransportError{Provider: displayName, Err: fmt.Errorf("empty response")}
	}
	return text, nil
}

// responseText 取出第一個候選回應中的所有文字片段
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}
