package mix

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"paint-mixer/internal/core/ai/provider"
	"paint-mixer/internal/core/paint"
	"paint-mixer/internal/pkg/common"
)

// EmptyPaletteMessage 使用者沒有任何顏料時的說明
const EmptyPaletteMessage = "You have no paints in your palette. Add paints to generate mixes."

const tracerName = "paint-mixer/internal/core/mix"

// Service 混色生成服務
type Service struct {
	store     PaletteStore
	providers ProviderSource
	gate      Gate
	tracer    trace.Tracer
	now       func() time.Time
}

// Option Service 選項
type Option func(*Service)

// WithGate 以 gate 限制同時進行的後端呼叫
func WithGate(g Gate) Option {
	return func(s *Service) {
		s.gate = g
	}
}

// NewService 創建混色服務
func NewService(store PaletteStore, providers ProviderSource, opts ...Option) *Service {
	s := &Service{
		store:     store,
		providers: providers,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// acquire 取得後端呼叫名額；沒有設定 gate 時不限制
func (s *Service) acquire(ctx context.Context) (func(), error) {
	if s.gate == nil {
		return func() {}, nil
	}
	return s.gate.Acquire(ctx)
}

// GenerateMixPreview 生成混色預覽，不儲存
func (s *Service) GenerateMixPreview(ctx context.Context, ownerID string, req Request) (*Preview, error) {
	ctx, span := s.tracer.Start(ctx, "mix.preview", trace.WithAttributes(
		attribute.String("mix.target_brand", req.TargetBrand),
		attribute.String("mix.target_name", req.TargetName),
	))
	defer span.End()

	preview, err := s.preview(ctx, ownerID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &common.MixGenerationError{Err: err}
	}
	return preview, nil
}

// GenerateMix 生成混色並存成新的顏料
//
// 沒有任何成分時只回傳預覽，不寫入。
func (s *Service) GenerateMix(ctx context.Context, ownerID string, req Request) (*Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "mix.generate", trace.WithAttributes(
		attribute.String("mix.target_brand", req.TargetBrand),
		attribute.String("mix.target_name", req.TargetName),
	))
	defer span.End()

	outcome, err := s.generate(ctx, ownerID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &common.MixGenerationError{Err: err}
	}
	return outcome, nil
}

func (s *Service) generate(ctx context.Context, ownerID string, req Request) (*Outcome, error) {
	preview, err := s.preview(ctx, ownerID, req)
	if err != nil {
		return nil, err
	}
	if len(preview.Recipe.Components) == 0 {
		return &Outcome{Preview: preview}, nil
	}

	recipe := (&paint.Recipe{Components: preview.Recipe.Components}).Canonical()
	meta := preview.AIMetadata
	draft := paint.Draft{
		Brand:      req.TargetBrand,
		Name:       req.TargetName,
		Reference:  req.TargetReference,
		Color:      optional(req.TargetColor),
		IsMix:      true,
		Notes:      preview.Recipe.Notes,
		InStock:    true,
		Recipe:     recipe,
		AIMetadata: &meta,
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	saved, err := s.store.CreateOwned(ctx, ownerID, draft)
	if err != nil {
		return nil, fmt.Errorf("failed to save mix: %w", err)
	}

	common.LogInfo("Mix generated and saved",
		zap.String("owner_id", ownerID),
		zap.String("mix_id", saved.ID),
		zap.String("mix_name", saved.Name),
	)

	return &Outcome{
		Preview: preview,
		Mix: &SavedMix{
			Paint:       saved,
			Confidence:  preview.Recipe.Confidence,
			Explanation: preview.Recipe.Notes,
		},
	}, nil
}

func (s *Service) preview(ctx context.Context, ownerID string, req Request) (*Preview, error) {
	paints, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load palette: %w", err)
	}

	out := &Preview{
		TargetBrand:     req.TargetBrand,
		TargetName:      req.TargetName,
		TargetColor:     optional(req.TargetColor),
		TargetReference: req.TargetReference,
	}

	if len(paints) == 0 {
		out.Recipe = PreviewRecipe{Components: []paint.Component{}, Notes: EmptyPaletteMessage}
		out.AIMetadata = paint.AIMetadata{
			Provider:  "none",
			Model:     "none",
			Timestamp: common.Timestamp(s.now()),
			Error:     "Empty palette",
		}
		return out, nil
	}

	p, err := s.providers.Create(ctx, "")
	if err != nil {
		return nil, err
	}

	recipe, err := s.invoke(ctx, p, req.TargetBrand, targetNameWithReference(req), provider.PaletteFrom(paints))
	if err != nil {
		return nil, err
	}

	_, span := s.tracer.Start(ctx, "mix.reconcile")
	components := Reconcile(recipe.Components, paints)
	span.SetAttributes(
		attribute.Int("mix.components", len(components)),
		attribute.Int("mix.unresolved", countUnresolved(components)),
	)
	span.End()

	out.Recipe = PreviewRecipe{
		Components: components,
		Notes:      recipe.Explanation,
		Confidence: recipe.Confidence,
		TotalDrops: TotalDrops(components),
	}
	out.AIMetadata = recipe.AIMetadata
	return out, nil
}

// invoke 呼叫 provider；外層取消時立即返回，後端呼叫依 provider 自己的逾時結束
func (s *Service) invoke(ctx context.Context, p provider.Provider, brand, name string, palette []provider.PaletteEntry) (*provider.Recipe, error) {
	info := p.Info()
	ctx, span := s.tracer.Start(ctx, "mix.provider_call", trace.WithAttributes(
		attribute.String("ai.provider", info.Name),
		attribute.String("ai.model", info.Model),
		attribute.Int("mix.palette_size", len(palette)),
	))
	defer span.End()

	release, err := s.acquire(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	type result struct {
		recipe *provider.Recipe
		err    error
	}
	done := make(chan result, 1)
	callCtx := context.WithoutCancel(ctx)
	go func() {
		defer release()
		r, err := p.GenerateMix(callCtx, brand, name, palette)
		done <- result{recipe: r, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			span.RecordError(res.err)
			span.SetStatus(codes.Error, res.err.Error())
		}
		return res.recipe, res.err
	case <-ctx.Done():
		common.LogWarn("Mix request cancelled before provider returned",
			zap.String("provider", info.Name),
			zap.Error(ctx.Err()),
		)
		span.SetStatus(codes.Error, "cancelled")
		return nil, ctx.Err()
	}
}

// PromptPreview 產生將送給 AI 的 prompt，不呼叫後端
func (s *Service) PromptPreview(ctx context.Context, ownerID string, req Request) (*PromptPreview, error) {
	paints, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load palette: %w", err)
	}

	p, err := s.providers.Create(ctx, "")
	if err != nil {
		return nil, err
	}

	prompt := p.BuildPrompt(req.TargetBrand, req.TargetName, provider.PaletteFrom(paints))
	info := p.Info()
	return &PromptPreview{
		TargetBrand:  req.TargetBrand,
		TargetName:   req.TargetName,
		TargetColor:  optional(req.TargetColor),
		Prompt:       prompt,
		PaletteSize:  len(paints),
		PromptLength: promptLength(prompt),
		Provider:     info.Name,
		Model:        info.Model,
	}, nil
}

// Raw 送出 prompt 並回傳未解析的文字，供除錯使用
func (s *Service) Raw(ctx context.Context, ownerID string, req Request) (*RawResult, error) {
	paints, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load palette: %w", err)
	}

	p, err := s.providers.Create(ctx, "")
	if err != nil {
		return nil, err
	}

	prompt := p.BuildPrompt(req.TargetBrand, targetNameWithReference(req), provider.PaletteFrom(paints))
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	start := s.now()
	text, err := p.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("raw AI call failed: %w", err)
	}

	return &RawResult{
		Prompt:       prompt,
		PromptLength: promptLength(prompt),
		RawResponse:  text,
		ResponseTime: fmt.Sprintf("%dms", s.now().Sub(start).Milliseconds()),
		Provider:     p.Info(),
	}, nil
}

// Health 測試目前 provider 的連線
func (s *Service) Health(ctx context.Context) (provider.ConnectionStatus, error) {
	p, err := s.providers.Create(ctx, "")
	if err != nil {
		return provider.ConnectionStatus{}, err
	}
	return p.TestConnection(ctx), nil
}

// Reset 清除 provider 快取
func (s *Service) Reset() {
	s.providers.Reset()
}

func targetNameWithReference(req Request) string {
	if req.TargetReference == "" {
		return req.TargetName
	}
	return fmt.Sprintf("%s (Ref: %s)", req.TargetName, req.TargetReference)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func promptLength(prompt string) int {
	return len([]rune(prompt))
}

func countUnresolved(components []paint.Component) int {
	n := 0
	for _, c := range components {
		if c.Unresolved {
			n++
		}
	}
	return n
}
