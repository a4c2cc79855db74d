package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/metrics"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/model"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// TextGenerator produces a completion for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type geminiGenerator struct {
	client    *genai.Client
	modelName string
}

// NewGeminiGenerator creates a Gemini-backed TextGenerator.
func NewGeminiGenerator(ctx context.Context, apiKey, modelName string) (TextGenerator, func() error, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &geminiGenerator{client: client, modelName: modelName}, client.Close, nil
}

func (g *geminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m := g.client.GenerativeModel(g.modelName)
	m.SetTemperature(0.5)
	m.SetMaxOutputTokens(1024)
	m.ResponseMIMEType = "application/json"
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text("You are a helpful wardrobe assistant.")},
	}

	res, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("error generating content: %w", err)
	}
	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return "", errors.New("empty response")
	}
	var sb strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("response has no text")
	}
	return sb.String(), nil
}

// Recommender turns a wardrobe into ranked outfit suggestions.
type Recommender interface {
	Recommend(ctx context.Context, wardrobe []model.WardrobeItem, prefs model.StylePreferences) (*model.OutfitResponse, error)
}

type promptRecommender struct {
	gen TextGenerator
}

func NewRecommender(gen TextGenerator) Recommender {
	return &promptRecommender{gen: gen}
}

func (r *promptRecommender) Recommend(ctx context.Context, wardrobe []model.WardrobeItem, prefs model.StylePreferences) (*model.OutfitResponse, error) {
	text, err := r.gen.Generate(ctx, outfitPrompt(wardrobe, prefs))
	if err != nil {
		return nil, err
	}
	return ParseOutfitResponse(text, wardrobe)
}

func outfitPrompt(wardrobe []model.WardrobeItem, prefs model.StylePreferences) string {
	var b strings.Builder
	b.WriteString("You are an assistant that generates outfits in JSON format from wardrobe items based on user preferences and metadata.\n\n")
	b.WriteString("### User Preferences:\n")
	if prefs.Color != "" {
		fmt.Fprintf(&b, "- Color Preference: %s\n", prefs.Color)
	}
	if prefs.Occasion != "" {
		fmt.Fprintf(&b, "- Occasion: %s\n", prefs.Occasion)
	}
	b.WriteString(`
### Wardrobe Metadata:
- Category: "Top" (Shirt, Jacket, T-shirt), "Bottom" (Pants, Skirt) or "Shoes".
- Subcategory: additional detail (e.g. "Low-Top Sneakers").
- Vibe: style or mood (e.g. "Casual", "Formal").
- Season: suitability for a season ("Winter", "Summer", ...).
- Color: the dominant color.

### Wardrobe Items:
`)
	for _, it := range wardrobe {
		fmt.Fprintf(&b, "- Item %s: { Category: %s, ", it.ID, it.Category)
		if it.SubCategory != "" {
			fmt.Fprintf(&b, "Subcategory: %s, ", it.SubCategory)
		}
		if it.Vibe != "" {
			fmt.Fprintf(&b, "Vibe: %s, ", it.Vibe)
		}
		fmt.Fprintf(&b, "Season: %s, Color: %s }\n", it.Season, it.DominantColor)
	}
	b.WriteString(`
### Task:
Recommend the top 3 outfits. Each outfit must contain exactly one "Top", one "Bottom" and one "Shoes", referenced by item id.
Rank outfits by match percentage considering color preference and occasion.
Output only JSON of this shape:
{"outfits":[{"outfit_id":"Outfit 1","outfit_pieces":{"Top":"<id>","Bottom":"<id>","Shoes":"<id>"},"match":100}]}
`)
	return b.String()
}

var jsonFence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ParseOutfitResponse extracts the outfit JSON from a model completion,
// fenced or bare, and checks every piece refers to an item in wardrobe.
func ParseOutfitResponse(text string, wardrobe []model.WardrobeItem) (*model.OutfitResponse, error) {
	body := strings.TrimSpace(text)
	if m := jsonFence.FindStringSubmatch(body); m != nil {
		body = m[1]
	}
	var out model.OutfitResponse
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, fmt.Errorf("failed to parse outfit JSON: %w", err)
	}
	if len(out.Outfits) == 0 {
		return nil, errors.New("response contains no outfits")
	}
	known := make(map[string]bool, len(wardrobe))
	for _, it := range wardrobe {
		known[it.ID] = true
	}
	for _, o := range out.Outfits {
		for _, id := range []string{o.OutfitPieces.Top, o.OutfitPieces.Bottom, o.OutfitPieces.Shoes} {
			if !known[id] {
				return nil, fmt.Errorf("outfit %q references unknown item %q", o.OutfitID, id)
			}
		}
	}
	return &out, nil
}

// OutfitService generates outfits against the user's weekly quota.
type OutfitService interface {
	GenerateOutfits(ctx context.Context, userID string, wardrobe []model.WardrobeItem, prefs model.StylePreferences) (*model.OutfitResponse, error)
}

type outfitService struct {
	recommender Recommender
	quota       QuotaService
}

func NewOutfitService(recommender Recommender, quota QuotaService) OutfitService {
	return &outfitService{recommender: recommender, quota: quota}
}

func (s *outfitService) GenerateOutfits(ctx context.Context, userID string, wardrobe []model.WardrobeItem, prefs model.StylePreferences) (*model.OutfitResponse, error) {
	if len(wardrobe) == 0 {
		return nil, fmt.Errorf("%w: wardrobe is empty", ErrInvalidInput)
	}
	var out *model.OutfitResponse
	err := s.quota.CheckAndConsumeOutfitGenerationQuota(ctx, userID, func(ctx context.Context) error {
		res, err := s.recommender.Recommend(ctx, wardrobe, prefs)
		if err != nil {
			metrics.UpstreamFailuresTotal.WithLabelValues("recommender").Inc()
			return upstream("recommender", err)
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
