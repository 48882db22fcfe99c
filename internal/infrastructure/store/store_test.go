package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paint-mixer/internal/core/paint"
)

// seeder 寫入原始紀錄，用來模擬舊版資料
type seeder func(t *testing.T, records ...Record)

func ptr(s string) *string { return &s }

func legacyRecords() []Record {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []Record{
		{
			ID: "legacy-array", OwnerID: "u1", Brand: "Vallejo", Name: "Old Grey", IsMix: true, InStock: true,
			Recipe:    json.RawMessage(`[{"paintId":"p1","name":"Black","drops":3},{"paintId":"p2","paintName":"White","drops":"x"}]`),
			CreatedAt: base, UpdatedAt: base,
		},
		{
			ID: "extended", OwnerID: "u1", Brand: "Vallejo", Name: "Old Blue", IsMix: true,
			Recipe:    json.RawMessage(`{"components":[{"paintId":"p3","paintName":"Blue","drops":2}],"totalDrops":9,"notes":"thin coats","confidence":0.7,"isEdited":true}`),
			CreatedAt: base.Add(time.Minute), UpdatedAt: base.Add(time.Minute),
		},
		{
			ID: "canonical", OwnerID: "u2", Brand: "Citadel", Name: "Fine", IsMix: true, Notes: "mine",
			Recipe:    json.RawMessage(`{"components":[{"paintId":"p4","drops":1,"percentage":100}],"totalDrops":1}`),
			CreatedAt: base.Add(2 * time.Minute), UpdatedAt: base.Add(2 * time.Minute),
		},
		{
			ID: "broken", OwnerID: "u2", Brand: "Citadel", Name: "Broken", IsMix: true,
			Recipe:    json.RawMessage(`{"parts":[]}`),
			CreatedAt: base.Add(3 * time.Minute), UpdatedAt: base.Add(3 * time.Minute),
		},
		{
			ID: "plain", OwnerID: "u1", Brand: "Vallejo", Name: "Black", Color: ptr("#000000"), InStock: true,
			CreatedAt: base.Add(4 * time.Minute), UpdatedAt: base.Add(4 * time.Minute),
		},
	}
}

// runStoreContract 所有後端共用的行為測試
func runStoreContract(t *testing.T, s Store, seed seeder) {
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	t.Run("create and list newest first", func(t *testing.T) {
		first, err := s.CreateOwned(ctx, "owner-a", paint.Draft{Brand: "Vallejo", Name: "Black", Color: ptr("#000000"), InStock: true})
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
		second, err := s.CreateOwned(ctx, "owner-a", paint.Draft{
			Brand: "Vallejo", Name: "Grey", IsMix: true, Notes: "50/50",
			Recipe: &paint.Recipe{Components: []paint.Component{
				{PaintID: first.ID, PaintName: "Black", Drops: 5},
				{PaintID: "ghost", Drops: 5, Unresolved: true},
			}, TotalDrops: 1},
			AIMetadata: &paint.AIMetadata{Provider: "gemini", Model: "gemini-1.5-flash"},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, second.ID)
		assert.Equal(t, 10, second.Recipe.TotalDrops)

		list, err := s.ListByOwner(ctx, "owner-a")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, second.ID, list[0].ID)
		assert.Equal(t, first.ID, list[1].ID)
		assert.Equal(t, "gemini", list[0].AIMetadata.Provider)
		assert.False(t, list[0].Recipe.Components[1].Unresolved)
		assert.Equal(t, "#000000", list[1].ColorString())

		other, err := s.ListByOwner(ctx, "owner-b")
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("create validates draft", func(t *testing.T) {
		_, err := s.CreateOwned(ctx, "owner-a", paint.Draft{Brand: "Vallejo", Name: "Bad", Color: ptr("red")})
		assert.Error(t, err)
		_, err = s.CreateOwned(ctx, "", paint.Draft{Brand: "Vallejo", Name: "Orphan"})
		assert.Error(t, err)
	})

	t.Run("get update delete", func(t *testing.T) {
		p, err := s.CreateOwned(ctx, "owner-c", paint.Draft{Brand: "AK", Name: "Sand", InStock: true})
		require.NoError(t, err)

		p.InStock = false
		p.Notes = "empty bottle"
		updated, err := s.Update(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, "owner-c", updated.OwnerID)

		got, err := s.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.False(t, got.InStock)
		assert.Equal(t, "empty bottle", got.Notes)

		require.NoError(t, s.Delete(ctx, p.ID))
		_, err = s.Get(ctx, p.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, p.ID), ErrNotFound)
		_, err = s.Update(ctx, p)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("reads normalize historical recipes", func(t *testing.T) {
		seed(t, legacyRecords()...)

		legacy, err := s.Get(ctx, "legacy-array")
		require.NoError(t, err)
		require.NotNil(t, legacy.Recipe)
		assert.Equal(t, 3, legacy.Recipe.TotalDrops)
		assert.Equal(t, "White", legacy.Recipe.Components[1].PaintName)

		extended, err := s.Get(ctx, "extended")
		require.NoError(t, err)
		assert.Equal(t, 2, extended.Recipe.TotalDrops)
		assert.Equal(t, "thin coats", extended.Notes)

		broken, err := s.Get(ctx, "broken")
		require.NoError(t, err)
		assert.Nil(t, broken.Recipe)
		assert.Equal(t, "Broken", broken.Name)
	})

	t.Run("normalize recipes migration", func(t *testing.T) {
		dry, err := NormalizeRecipes(ctx, s, true)
		require.NoError(t, err)

		summary, err := NormalizeRecipes(ctx, s, false)
		require.NoError(t, err)
		assert.Equal(t, dry, summary)
		assert.GreaterOrEqual(t, summary.Updated, 2)
		assert.Equal(t, 1, summary.Errors)

		again, err := NormalizeRecipes(ctx, s, false)
		require.NoError(t, err)
		assert.Equal(t, 0, again.Updated)
		assert.Equal(t, 1, again.Errors)
		assert.Equal(t, summary.Total, again.Total)

		entries, err := s.ListMixes(ctx)
		require.NoError(t, err)
		for _, e := range entries {
			if e.Err == nil {
				assert.False(t, e.NeedsRewrite, e.Paint.ID)
				assert.Equal(t, paint.FormatCanonical, e.Format, e.Paint.ID)
			}
		}

		extended, err := s.Get(ctx, "extended")
		require.NoError(t, err)
		assert.Equal(t, "thin coats", extended.Notes)

		canonical, err := s.Get(ctx, "canonical")
		require.NoError(t, err)
		assert.Equal(t, "mine", canonical.Notes)
	})
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })

	runStoreContract(t, s, func(t *testing.T, records ...Record) {
		s.Seed(records...)
	})

	stats := s.Stats()
	assert.Positive(t, stats["reads"])
	assert.Positive(t, stats["writes"])
}

func TestNormalizeRecipesLeavesFractionalRecipes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.Seed(
		Record{
			ID: "fractional", OwnerID: "u1", Brand: "Vallejo", Name: "Half Grey", IsMix: true,
			Recipe:    json.RawMessage(`[{"paintId":"p1","drops":2.5},{"paintId":"p2","drops":2}]`),
			CreatedAt: now, UpdatedAt: now,
		},
		Record{
			ID: "whole", OwnerID: "u1", Brand: "Vallejo", Name: "Grey", IsMix: true,
			Recipe:    json.RawMessage(`[{"paintId":"p1","drops":3},{"paintId":"p2","drops":2}]`),
			CreatedAt: now, UpdatedAt: now,
		},
	)

	summary, err := NormalizeRecipes(ctx, s, false)
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 2, Updated: 1, Lossy: 1}, summary)

	entries, err := s.ListMixes(ctx)
	require.NoError(t, err)
	for _, e := range entries {
		switch e.Paint.ID {
		case "fractional":
			assert.True(t, e.Lossy)
			assert.True(t, e.NeedsRewrite, "stored value is left for manual review")
			assert.Equal(t, paint.FormatLegacyArray, e.Format)
		case "whole":
			assert.False(t, e.NeedsRewrite)
		}
	}
}

func TestRecordFromWritesCanonicalShape(t *testing.T) {
	r, err := RecordFrom(paint.Paint{
		ID: "m1", IsMix: true,
		Recipe: &paint.Recipe{Components: []paint.Component{{PaintID: "p1", Drops: 2, Unresolved: true}}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"components":[{"paintId":"p1","drops":2,"percentage":0}],"totalDrops":2}`, string(r.Recipe))

	plain, err := RecordFrom(paint.Paint{ID: "p1"})
	require.NoError(t, err)
	assert.Nil(t, plain.Recipe)
}

func TestNewUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), configFor("cassandra"))
	assert.Error(t, err)
}
