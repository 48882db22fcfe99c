package mix

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"paint-mixer/internal/core/ai/provider"
	"paint-mixer/internal/core/paint"
	"paint-mixer/internal/pkg/common"
)

type fakeStore struct {
	mu      sync.Mutex
	paints  map[string][]paint.Paint
	created []paint.Draft
}

func (s *fakeStore) ListByOwner(ctx context.Context, ownerID string) ([]paint.Paint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]paint.Paint(nil), s.paints[ownerID]...), nil
}

func (s *fakeStore) CreateOwned(ctx context.Context, ownerID string, d paint.Draft) (paint.Paint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, d)
	p := paint.NewPaint("mix-1", ownerID, d, time.Now())
	s.paints[ownerID] = append(s.paints[ownerID], p)
	return p, nil
}

type scriptedProvider struct {
	provider.Base
	text    string
	err     error
	block   chan struct{}
	targets []string
}

func (p *scriptedProvider) GenerateMix(ctx context.Context, brand, name string, palette []provider.PaletteEntry) (*provider.Recipe, error) {
	p.targets = append(p.targets, name)
	return provider.Generate(ctx, p, brand, name, palette)
}

func (p *scriptedProvider) BuildPrompt(brand, name string, palette []provider.PaletteEntry) string {
	return provider.BuildPrompt(provider.StyleCloud, brand, name, palette)
}

func (p *scriptedProvider) TestConnection(ctx context.Context) provider.ConnectionStatus {
	return provider.NewConnectionStatus(p.Info(), "not-set", time.Millisecond, "OK", nil)
}

func (p *scriptedProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if p.block != nil {
		<-p.block
	}
	return p.text, p.err
}

func (p *scriptedProvider) Info() provider.Info {
	return provider.Info{Name: "scripted", Model: "scripted-1", Transport: provider.TransportSDK}
}

func (p *scriptedProvider) Ready() bool { return true }

type fakeSource struct {
	p      provider.Provider
	err    error
	calls  int
	resets int
}

func (f *fakeSource) Create(ctx context.Context, override string) (provider.Provider, error) {
	f.calls++
	return f.p, f.err
}

func (f *fakeSource) Reset() { f.resets++ }

func colorPtr(c string) *string { return &c }

func greyPalette() []paint.Paint {
	return []paint.Paint{
		{ID: "black-id", OwnerID: "u1", Brand: "Vallejo", Name: "Black", Color: colorPtr("#000000")},
		{ID: "white-id", OwnerID: "u1", Brand: "Vallejo", Name: "White", Color: colorPtr("#FFFFFF")},
	}
}

const greyResponse = `{"targetBrand":"Vallejo","targetName":"Grey","confidence":0.85,"explanation":"50/50","components":[{"paintId":"black-id","drops":5},{"paintId":"white-id","drops":5}]}`

func newTestService(paints []paint.Paint, p provider.Provider) (*Service, *fakeStore, *fakeSource) {
	store := &fakeStore{paints: map[string][]paint.Paint{"u1": paints}}
	source := &fakeSource{p: p}
	return NewService(store, source), store, source
}

func TestGenerateMixPreviewEndToEnd(t *testing.T) {
	svc, store, _ := newTestService(greyPalette(), &scriptedProvider{text: greyResponse})

	preview, err := svc.GenerateMixPreview(context.Background(), "u1", Request{TargetBrand: "Vallejo", TargetName: "Grey"})
	require.NoError(t, err)

	assert.Equal(t, 10, preview.Recipe.TotalDrops)
	assert.Equal(t, 0.85, preview.Recipe.Confidence)
	assert.Equal(t, "50/50", preview.Recipe.Notes)
	require.Len(t, preview.Recipe.Components, 2)
	assert.Equal(t, "Black", preview.Recipe.Components[0].PaintName)
	assert.Equal(t, "Vallejo", preview.Recipe.Components[0].Brand)
	assert.Equal(t, "#000000", *preview.Recipe.Components[0].Color)
	assert.Equal(t, "White", preview.Recipe.Components[1].PaintName)
	assert.Equal(t, "scripted", preview.AIMetadata.Provider)
	assert.Nil(t, preview.TargetColor)
	assert.Empty(t, store.created, "preview never persists")
}

func TestGenerateMixPreviewEmptyPalette(t *testing.T) {
	svc, _, source := newTestService(nil, &scriptedProvider{text: greyResponse})

	preview, err := svc.GenerateMixPreview(context.Background(), "u1", Request{TargetBrand: "Vallejo", TargetName: "Grey"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, preview.Recipe.Confidence)
	assert.Empty(t, preview.Recipe.Components)
	assert.NotNil(t, preview.Recipe.Components)
	assert.Equal(t, EmptyPaletteMessage, preview.Recipe.Notes)
	assert.Equal(t, "none", preview.AIMetadata.Provider)
	assert.Equal(t, 0, source.calls, "factory is never consulted")
}

func TestGenerateMixAppendsReference(t *testing.T) {
	p := &scriptedProvider{text: greyResponse}
	svc, _, _ := newTestService(greyPalette(), p)

	preview, err := svc.GenerateMixPreview(context.Background(), "u1", Request{TargetBrand: "Vallejo", TargetName: "Grey", TargetReference: "70.992"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Grey (Ref: 70.992)"}, p.targets)
	assert.Equal(t, "Grey", preview.TargetName)
	assert.Equal(t, "70.992", preview.TargetReference)
}

func TestGenerateMixReconciliation(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	common.SetLogger(zap.New(core))
	t.Cleanup(func() { common.SetLogger(zap.NewNop()) })

	response := `{"targetBrand":"Vallejo","targetName":"Grey","components":[
		{"paintId":"black-id","drops":3},
		{"paintId":"WHITE","drops":2,"percentage":40},
		{"paintId":"nonexistent-xyz","drops":1}
	]}`
	svc, _, _ := newTestService(greyPalette(), &scriptedProvider{text: response})

	preview, err := svc.GenerateMixPreview(context.Background(), "u1", Request{TargetBrand: "Vallejo", TargetName: "Grey"})
	require.NoError(t, err)

	c := preview.Recipe.Components
	require.Len(t, c, 3)
	assert.Equal(t, "Black", c[0].PaintName)
	assert.Equal(t, "white-id", c[1].PaintID)
	assert.Equal(t, "White", c[1].PaintName)
	assert.Equal(t, 40, c[1].Percentage)
	assert.Equal(t, paint.Component{PaintID: "nonexistent-xyz", Drops: 1, Unresolved: true}, c[2])
	assert.Equal(t, 6, preview.Recipe.TotalDrops)
	assert.Equal(t, 0.0, preview.Recipe.Confidence)

	warnings := logs.FilterMessage("Could not find paint for component").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "nonexistent-xyz", warnings[0].ContextMap()["paint_id"])
}

func TestReconcileFuzzyFirstMatchInPaletteOrder(t *testing.T) {
	palette := []paint.Paint{
		{ID: "p1", Brand: "Vallejo", Name: "Black Grey"},
		{ID: "p2", Brand: "Vallejo", Name: "Black"},
		{ID: "p3", Brand: "Citadel", Name: "White"},
		{ID: "p4", Brand: "Army Painter", Name: ""},
	}

	cases := map[string]string{
		"black":          "p1",
		"Vallejo Black":  "p1",
		"  BLACK GREY  ": "p1",
		"white paint":    "p3",
		"citadel white":  "p3",
		"grey":           "p1",
		"army painter":   "p4",
		"vallejo":        "p1",
	}
	for raw, want := range cases {
		got := Reconcile([]provider.RecipeComponent{{PaintID: raw, Drops: 1}}, palette)
		require.Len(t, got, 1)
		assert.Equal(t, want, got[0].PaintID, raw)
		assert.False(t, got[0].Unresolved, raw)
	}

	got := Reconcile([]provider.RecipeComponent{{PaintID: "", Drops: 1}}, palette)
	assert.True(t, got[0].Unresolved)
}

func TestReconcileFuzzyKeepsShortNameAmbiguity(t *testing.T) {
	palette := []paint.Paint{
		{ID: "red", Brand: "Vallejo", Name: "Red"},
		{ID: "bright", Brand: "Citadel", Name: "Bright Red"},
	}

	got := Reconcile([]provider.RecipeComponent{{PaintID: "bright red", Drops: 2}}, palette)
	require.Len(t, got, 1)
	assert.Equal(t, "red", got[0].PaintID)
	assert.Equal(t, "Red", got[0].PaintName)
	assert.Equal(t, 2, got[0].Drops)
}

func TestGenerateMixPersists(t *testing.T) {
	response := `{"targetBrand":"Vallejo","targetName":"Grey","confidence":0.85,"explanation":"50/50","components":[{"paintId":"black-id","drops":5},{"paintId":"ghost","drops":5}]}`
	svc, store, _ := newTestService(greyPalette(), &scriptedProvider{text: response})

	outcome, err := svc.GenerateMix(context.Background(), "u1", Request{
		TargetBrand:     "Vallejo",
		TargetName:      "Grey",
		TargetColor:     "#808080",
		TargetReference: "70.992",
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.Mix)
	assert.Same(t, outcome.Mix, outcome.Body())

	require.Len(t, store.created, 1)
	d := store.created[0]
	assert.True(t, d.IsMix)
	assert.True(t, d.InStock)
	assert.Equal(t, "Grey", d.Name)
	assert.Equal(t, "70.992", d.Reference)
	assert.Equal(t, "#808080", *d.Color)
	assert.Equal(t, "50/50", d.Notes)
	assert.Equal(t, 10, d.Recipe.TotalDrops)
	assert.False(t, d.Recipe.Components[1].Unresolved)
	assert.Equal(t, "scripted", d.AIMetadata.Provider)

	assert.Equal(t, 0.85, outcome.Mix.Confidence)
	assert.Equal(t, "50/50", outcome.Mix.Explanation)
	assert.Equal(t, "mix-1", outcome.Mix.ID)
}

func TestGenerateMixEmptyPaletteNotPersisted(t *testing.T) {
	svc, store, _ := newTestService(nil, nil)

	outcome, err := svc.GenerateMix(context.Background(), "u1", Request{TargetBrand: "Vallejo", TargetName: "Grey"})
	require.NoError(t, err)
	assert.Nil(t, outcome.Mix)
	assert.Same(t, outcome.Preview, outcome.Body())
	assert.Empty(t, store.created)
}

func TestGenerateMixErrors(t *testing.T) {
	store := &fakeStore{paints: map[string][]paint.Paint{"u1": greyPalette()}}

	svc := NewService(store, &fakeSource{err: common.NewConfigurationError("AI_API_KEY is required for cloud providers")})
	_, err := svc.GenerateMixPreview(context.Background(), "u1", Request{TargetBrand: "V", TargetName: "G"})
	require.Error(t, err)
	assert.True(t, common.IsConfigurationError(err))
	assert.Equal(t, "Mix generation failed: AI_API_KEY is required for cloud providers", err.Error())

	svc = NewService(store, &fakeSource{p: &scriptedProvider{text: "no json"}})
	_, err = svc.GenerateMix(context.Background(), "u1", Request{TargetBrand: "V", TargetName: "G"})
	require.Error(t, err)
	assert.True(t, common.IsParseError(err))
	assert.Contains(t, err.Error(), "Mix generation failed: AI generation failed")

	svc = NewService(store, &fakeSource{p: &scriptedProvider{err: errors.New("boom")}})
	_, err = svc.GenerateMixPreview(context.Background(), "u1", Request{TargetBrand: "V", TargetName: "G"})
	assert.ErrorContains(t, err, "boom")
}

func TestGenerateMixCancelReturnsImmediately(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	svc, _, _ := newTestService(greyPalette(), &scriptedProvider{text: greyResponse, block: block})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := svc.GenerateMixPreview(ctx, "u1", Request{TargetBrand: "Vallejo", TargetName: "Grey"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPromptPreviewAndRaw(t *testing.T) {
	p := &scriptedProvider{text: greyResponse}
	svc, _, source := newTestService(greyPalette(), p)

	pp, err := svc.PromptPreview(context.Background(), "u1", Request{TargetBrand: "Vallejo", TargetName: "Grey", TargetColor: "#808080"})
	require.NoError(t, err)
	assert.Equal(t, 2, pp.PaletteSize)
	assert.Equal(t, "scripted", pp.Provider)
	assert.Equal(t, "#808080", *pp.TargetColor)
	assert.Contains(t, pp.Prompt, "[ID: black-id]")
	assert.Equal(t, len(pp.Prompt), pp.PromptLength)
	assert.Empty(t, p.targets, "dry-run never calls the backend")

	raw, err := svc.Raw(context.Background(), "u1", Request{TargetBrand: "Vallejo", TargetName: "Grey", TargetReference: "70.992"})
	require.NoError(t, err)
	assert.Equal(t, greyResponse, raw.RawResponse)
	assert.Contains(t, raw.Prompt, `"Vallejo Grey (Ref: 70.992)"`)
	assert.Equal(t, provider.TransportSDK, raw.Provider.Transport)

	status, err := svc.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Connected)

	svc.Reset()
	assert.Equal(t, 1, source.resets)
}

type countingGate struct {
	mu       sync.Mutex
	err      error
	acquired int
	released int
}

func (g *countingGate) Acquire(ctx context.Context) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.acquired++
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.released++
	}, nil
}

func TestGenerateMixUsesGate(t *testing.T) {
	gate := &countingGate{}
	store := &fakeStore{paints: map[string][]paint.Paint{"u1": greyPalette()}}
	svc := NewService(store, &fakeSource{p: &scriptedProvider{text: greyResponse}}, WithGate(gate))

	_, err := svc.GenerateMixPreview(context.Background(), "u1", Request{TargetBrand: "Vallejo", TargetName: "Grey"})
	require.NoError(t, err)
	_, err = svc.Raw(context.Background(), "u1", Request{TargetBrand: "Vallejo", TargetName: "Grey"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		gate.mu.Lock()
		defer gate.mu.Unlock()
		return gate.released == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, 2, gate.acquired)

	full := &countingGate{err: errors.New("queue is full")}
	svc = NewService(store, &fakeSource{p: &scriptedProvider{text: greyResponse}}, WithGate(full))
	_, err = svc.GenerateMixPreview(context.Background(), "u1", Request{TargetBrand: "Vallejo", TargetName: "Grey"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue is full")
}
