package service

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"paint-mixer/internal/core/ai/gemini"
	"paint-mixer/internal/core/ai/llmstudio"
	"paint-mixer/internal/core/ai/provider"
	"paint-mixer/internal/infrastructure/config"
	"paint-mixer/internal/pkg/common"
)

// Builder 依設定建構 provider
type Builder func(ctx context.Context, cfg config.AIConfig) (provider.Provider, error)

// ConfigLoader 讀取最新的 AI 設定
type ConfigLoader func() (config.AIConfig, error)

// Factory 程序層級的 provider 快取
//
// 快取在 Reset 前保持同一個實例；建構失敗永不寫入快取。
// generation 在每次 Reset 時遞增，Reset 之前開始的建構結果不會被寫回。
type Factory struct {
	mu         sync.RWMutex
	cached     provider.Provider
	generation uint64

	group      singleflight.Group
	loadConfig ConfigLoader
	builders   map[string]Builder
}

// Option Factory 選項
type Option func(*Factory)

// WithConfigLoader 替換設定來源
func WithConfigLoader(loader ConfigLoader) Option {
	return func(f *Factory) {
		f.loadConfig = loader
	}
}

// WithBuilder 註冊或替換某個 provider 的建構函式
func WithBuilder(name string, b Builder) Option {
	return func(f *Factory) {
		f.builders[name] = b
	}
}

// NewFactory 創建 provider factory
func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		loadConfig: config.LoadAIConfig,
		builders: map[string]Builder{
			config.ProviderGemini:    buildGemini,
			config.ProviderLLMStudio: buildLLMStudio,
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create 回傳快取的 provider，必要時重新建構
//
// 選擇順序：override > AI_PROVIDER > gemini。
func (f *Factory) Create(ctx context.Context, override string) (provider.Provider, error) {
	f.mu.RLock()
	cached, gen := f.cached, f.generation
	f.mu.RUnlock()

	if usable(cached, override) {
		return cached, nil
	}
	if cached != nil && !cached.Ready() {
		common.LogWarn("Resetting invalid cached provider instance",
			zap.String("provider", cached.Info().Name),
		)
	}

	key := fmt.Sprintf("%d:%s", gen, override)
	v, err, _ := f.group.Do(key, func() (any, error) {
		f.mu.RLock()
		current, currentGen := f.cached, f.generation
		f.mu.RUnlock()
		if currentGen == gen && usable(current, override) {
			return current, nil
		}

		p, err := f.build(context.WithoutCancel(ctx), override)

		f.mu.Lock()
		defer f.mu.Unlock()
		if f.generation != gen {
			if err != nil {
				return nil, err
			}
			return p, nil
		}
		if err != nil {
			f.cached = nil
			return nil, err
		}
		f.cached = p
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(provider.Provider), nil
}

// Reset 清除快取；之後的 Create 一定重新建構
func (f *Factory) Reset() {
	f.mu.Lock()
	cached := f.cached
	f.cached = nil
	f.generation++
	f.mu.Unlock()

	if closer, ok := cached.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			common.LogWarn("Failed to close AI provider", zap.Error(err))
		}
	}
	common.LogInfo("AI provider cache reset")
}

// Shutdown 關閉快取中的 provider
func (f *Factory) Shutdown() error {
	f.mu.Lock()
	cached := f.cached
	f.cached = nil
	f.generation++
	f.mu.Unlock()

	if closer, ok := cached.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (f *Factory) build(ctx context.Context, override string) (provider.Provider, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, common.NewConfigurationError("failed to load AI configuration: %v", err)
	}

	name := override
	if name == "" {
		name = cfg.Provider
	}
	if name == "" {
		name = config.ProviderGemini
	}

	if name == config.ProviderOpenAI {
		return nil, common.NewConfigurationError("OpenAI provider not yet implemented")
	}
	builder, ok := f.builders[name]
	if !ok {
		return nil, common.NewConfigurationError("Unknown AI provider: %s", name)
	}

	if cfg.APIKey == "" && name != config.ProviderLLMStudio {
		return nil, common.NewConfigurationError("AI_API_KEY is required for cloud providers")
	}

	p, err := builder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if p == nil || !p.Ready() {
		return nil, fmt.Errorf("Failed to initialize %s provider", name)
	}

	common.LogInfo("AI provider initialized",
		zap.String("provider", name),
		zap.String("model", p.Info().Model),
		zap.String("api_key_preview", common.MaskSecret(cfg.APIKey, "not-set")),
	)
	return p, nil
}

func usable(p provider.Provider, override string) bool {
	if p == nil || !p.Ready() {
		return false
	}
	return override == "" || p.Info().Name == override
}

func buildGemini(ctx context.Context, cfg config.AIConfig) (provider.Provider, error) {
	return gemini.NewClient(ctx, gemini.Config{
		APIKey:        cfg.APIKey,
		Model:         cfg.Model,
		Timeout:       cfg.Timeout,
		HealthTimeout: cfg.HealthTimeout,
	})
}

func buildLLMStudio(_ context.Context, cfg config.AIConfig) (provider.Provider, error) {
	return llmstudio.NewClient(llmstudio.Config{
		URL:           cfg.URL,
		APIKey:        cfg.APIKey,
		Model:         cfg.Model,
		Timeout:       cfg.LocalTimeout,
		HealthTimeout: cfg.HealthTimeout,
	})
}
