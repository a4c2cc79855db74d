package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WardrobeRepository persists classified wardrobe items.
type WardrobeRepository interface {
	// SaveAnalysis stores the labeler output on the item and marks it complete.
	// An item owned by another user yields ErrNotFound and is left untouched.
	SaveAnalysis(ctx context.Context, userID, itemID, imagePath string, analysis *model.ImageAnalysis) error
	GetItem(ctx context.Context, userID, itemID string) (*model.StoredWardrobeItem, error)
}

type wardrobeRepo struct {
	pool *pgxpool.Pool
}

func NewWardrobeRepo(pool *pgxpool.Pool) WardrobeRepository {
	return &wardrobeRepo{pool: pool}
}

func (r *wardrobeRepo) SaveAnalysis(ctx context.Context, userID, itemID, imagePath string, analysis *model.ImageAnalysis) error {
	labels, err := json.Marshal(analysis.AllLabels)
	if err != nil {
		return fmt.Errorf("marshal labels for item %s: %w", itemID, err)
	}
	const q = `
        INSERT INTO wardrobe_items (id, user_id, image_path, category, sub_category, vibe, season, dominant_color, labels, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'complete')
        ON CONFLICT (id) DO UPDATE
        SET category = EXCLUDED.category,
            sub_category = EXCLUDED.sub_category,
            vibe = EXCLUDED.vibe,
            season = EXCLUDED.season,
            dominant_color = EXCLUDED.dominant_color,
            labels = EXCLUDED.labels,
            status = 'complete',
            updated_at = NOW()
        WHERE wardrobe_items.user_id = EXCLUDED.user_id
        RETURNING id
    `
	var id string
	err = r.pool.QueryRow(ctx, q, itemID, userID, imagePath, analysis.Category, analysis.SubCategory,
		analysis.Vibe, analysis.Season, analysis.Color, labels).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("wardrobe item %s: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("save analysis for item %s: %w: %w", itemID, ErrStorageUnavailable, err)
	}
	return nil
}

func (r *wardrobeRepo) GetItem(ctx context.Context, userID, itemID string) (*model.StoredWardrobeItem, error) {
	const q = `
        SELECT id, user_id, image_path, category, sub_category, vibe, season, dominant_color, labels, status, created_at, updated_at
        FROM wardrobe_items
        WHERE id = $1 AND user_id = $2
    `
	var it model.StoredWardrobeItem
	var labels []byte
	err := r.pool.QueryRow(ctx, q, itemID, userID).Scan(
		&it.ID,
		&it.UserID,
		&it.ImagePath,
		&it.Analysis.Category,
		&it.Analysis.SubCategory,
		&it.Analysis.Vibe,
		&it.Analysis.Season,
		&it.Analysis.Color,
		&labels,
		&it.Status,
		&it.CreatedAt,
		&it.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("wardrobe item %s: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch wardrobe item %s: %w: %w", itemID, ErrStorageUnavailable, err)
	}
	if err := json.Unmarshal(labels, &it.Analysis.AllLabels); err != nil {
		return nil, fmt.Errorf("unmarshal labels for item %s: %w", itemID, err)
	}
	return &it, nil
}

var _ WardrobeRepository = (*MemoryWardrobeRepo)(nil)

// MemoryWardrobeRepo is the in-process WardrobeRepository.
type MemoryWardrobeRepo struct {
	mu    sync.Mutex
	items map[string]*model.StoredWardrobeItem
}

func NewMemoryWardrobeRepo() *MemoryWardrobeRepo {
	return &MemoryWardrobeRepo{items: make(map[string]*model.StoredWardrobeItem)}
}

func (r *MemoryWardrobeRepo) SaveAnalysis(_ context.Context, userID, itemID, imagePath string, analysis *model.ImageAnalysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.items[itemID]; ok && existing.UserID != userID {
		return fmt.Errorf("wardrobe item %s: %w", itemID, ErrNotFound)
	}
	r.items[itemID] = &model.StoredWardrobeItem{
		ID:        itemID,
		UserID:    userID,
		ImagePath: imagePath,
		Analysis:  *analysis,
		Status:    model.ItemStatusComplete,
	}
	return nil
}

func (r *MemoryWardrobeRepo) GetItem(_ context.Context, userID, itemID string) (*model.StoredWardrobeItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[itemID]
	if !ok || it.UserID != userID {
		return nil, fmt.Errorf("wardrobe item %s: %w", itemID, ErrNotFound)
	}
	c := *it
	return &c, nil
}
