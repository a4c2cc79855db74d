package service

import (
	"context"
	"strings"
	"testing"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testWardrobe = []model.WardrobeItem{
	{ID: "t1", Category: "Top", Season: "Summer", DominantColor: "Blue"},
	{ID: "b1", Category: "Bottom", Season: "Summer", DominantColor: "Beige"},
	{ID: "s1", Category: "Shoes", Season: "Seasonless", DominantColor: "White"},
}

const outfitJSON = `{"outfits":[{"outfit_id":"Outfit 1","outfit_pieces":{"Top":"t1","Bottom":"b1","Shoes":"s1"},"match":92.5}]}`

func TestParseOutfitResponse(t *testing.T) {
	t.Run("bare", func(t *testing.T) {
		out, err := ParseOutfitResponse(outfitJSON, testWardrobe)
		require.NoError(t, err)
		require.Len(t, out.Outfits, 1)
		assert.Equal(t, "t1", out.Outfits[0].OutfitPieces.Top)
		assert.InDelta(t, 92.5, out.Outfits[0].Match, 0.001)
	})

	t.Run("fenced", func(t *testing.T) {
		out, err := ParseOutfitResponse("Here you go:\n```json\n"+outfitJSON+"\n```\nEnjoy!", testWardrobe)
		require.NoError(t, err)
		assert.Equal(t, "Outfit 1", out.Outfits[0].OutfitID)
	})

	t.Run("unknown item", func(t *testing.T) {
		_, err := ParseOutfitResponse(strings.Replace(outfitJSON, `"s1"`, `"s9"`, 1), testWardrobe)
		assert.Error(t, err)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := ParseOutfitResponse("I could not find an outfit.", testWardrobe)
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseOutfitResponse(`{"outfits":[]}`, testWardrobe)
		assert.Error(t, err)
	})
}

func TestOutfitPromptIncludesPreferences(t *testing.T) {
	p := outfitPrompt(testWardrobe, model.StylePreferences{Color: "Blue", Occasion: "Casual"})
	assert.Contains(t, p, "Color Preference: Blue")
	assert.Contains(t, p, "Occasion: Casual")
	assert.Contains(t, p, "Item b1")
}

func TestGenerateOutfits(t *testing.T) {
	ctx := context.Background()

	t.Run("success consumes quota", func(t *testing.T) {
		qf := newQuotaFixture()
		svc := NewOutfitService(NewRecommender(&fakeGenerator{text: outfitJSON}), qf.quota)
		out, err := svc.GenerateOutfits(ctx, "u1", testWardrobe, model.StylePreferences{})
		require.NoError(t, err)
		assert.Len(t, out.Outfits, 1)

		p, err := qf.repo.GetProfile(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 1, p.Usage.OutfitGenerations)
	})

	t.Run("malformed response is upstream failure", func(t *testing.T) {
		qf := newQuotaFixture()
		svc := NewOutfitService(NewRecommender(&fakeGenerator{text: "sorry"}), qf.quota)
		_, err := svc.GenerateOutfits(ctx, "u1", testWardrobe, model.StylePreferences{})
		require.ErrorIs(t, err, ErrUpstream)

		p, err := qf.repo.GetProfile(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 0, p.Usage.OutfitGenerations)
	})

	t.Run("empty wardrobe", func(t *testing.T) {
		qf := newQuotaFixture()
		svc := NewOutfitService(NewRecommender(&fakeGenerator{text: outfitJSON}), qf.quota)
		_, err := svc.GenerateOutfits(ctx, "u1", nil, model.StylePreferences{})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}
