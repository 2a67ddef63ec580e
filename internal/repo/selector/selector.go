// Package selector holds the query helpers shared by bun repositories. Every helper treats a
// nil database as persistence being switched off.
package selector

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"github.com/clovid/prisma-sub000/internal/pkg/apierr"
)

type S[T any] struct {
	DB *bun.DB
}

func New[T any](db *bun.DB) S[T] {
	return S[T]{DB: db}
}

func (r S[T]) Enabled() bool {
	return r.DB != nil
}

func (r S[T]) SelectMany(ctx context.Context, fn func(q *bun.SelectQuery) *bun.SelectQuery) ([]*T, error) {
	if r.DB == nil {
		return nil, nil
	}
	var models []*T
	err := fn(r.DB.NewSelect().Model(&models)).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierr.ErrNotFound
	}
	return models, err
}

func (r S[T]) Insert(ctx context.Context, m *T) error {
	if r.DB == nil {
		return nil
	}
	_, err := r.DB.NewInsert().Model(m).Exec(ctx)
	return err
}

// EnsureTable creates the table of T unless it exists.
func (r S[T]) EnsureTable(ctx context.Context) error {
	if r.DB == nil {
		return nil
	}
	_, err := r.DB.NewCreateTable().Model((*T)(nil)).IfNotExists().Exec(ctx)
	return err
}
