package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pulsegram/apiserver/internal/db"
	"github.com/pulsegram/apiserver/internal/hashtag"
	"github.com/pulsegram/apiserver/types"
)

// HashtagIndex maintains the name to hashtag mapping. It is bound to a
// db.DBTX so post creation can resolve tags inside its own transaction.
type HashtagIndex struct {
	db db.DBTX
}

func NewHashtagIndex(q db.DBTX) *HashtagIndex {
	return &HashtagIndex{db: q}
}

// ExtractAndLink resolves every distinct hashtag in text to a stored
// record, creating the ones that do not exist yet. Records are returned in
// order of first occurrence.
func (h *HashtagIndex) ExtractAndLink(ctx context.Context, text string) ([]types.Hashtag, error) {
	names := hashtag.Extract(text)
	tags := make([]types.Hashtag, 0, len(names))
	for _, name := range names {
		tag, err := h.resolve(ctx, name)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// resolve reads the tag, creating it when absent. A concurrent writer can
// create the same name between the read and the insert; the index then
// re-reads once.
func (h *HashtagIndex) resolve(ctx context.Context, name string) (types.Hashtag, error) {
	tag, err := h.GetByName(ctx, name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return types.Hashtag{}, err
	}

	tag, err = h.Create(ctx, name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, ErrConflict) {
		return types.Hashtag{}, err
	}

	tag, err = h.GetByName(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return types.Hashtag{}, ErrConflict
	}
	return tag, err
}

func (h *HashtagIndex) GetByName(ctx context.Context, name string) (types.Hashtag, error) {
	const query = `
		SELECT id, name
		FROM hashtags
		WHERE name = $1`
	var tag types.Hashtag
	err := h.db.QueryRowContext(ctx, query, name).Scan(&tag.ID, &tag.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Hashtag{}, ErrNotFound
		}
		return types.Hashtag{}, err
	}
	return tag, nil
}

// Create inserts a new tag. It returns ErrConflict when the name already
// exists; the statement does not fail, so an enclosing transaction stays
// usable.
func (h *HashtagIndex) Create(ctx context.Context, name string) (types.Hashtag, error) {
	const query = `
		INSERT INTO hashtags (name)
		VALUES ($1)
		ON CONFLICT (name) DO NOTHING
		RETURNING id`
	tag := types.Hashtag{Name: name}
	err := h.db.QueryRowContext(ctx, query, name).Scan(&tag.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Hashtag{}, ErrConflict
		}
		return types.Hashtag{}, err
	}
	return tag, nil
}

// Count reports how many hashtag rows carry name. It is always 0 or 1.
func (h *HashtagIndex) Count(ctx context.Context, name string) (int, error) {
	const query = `SELECT COUNT(*) FROM hashtags WHERE name = $1`
	var n int
	if err := h.db.QueryRowContext(ctx, query, name).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
