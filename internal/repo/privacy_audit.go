package repo

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/clovid/prisma-sub000/internal/model"
	"github.com/clovid/prisma-sub000/internal/repo/selector"
)

// PrivacyAudit persists privacy audit entries. Without a database every call is a no-op.
type PrivacyAudit struct {
	sel selector.S[model.PrivacyAudit]
}

func NewPrivacyAudit(db *bun.DB) *PrivacyAudit {
	return &PrivacyAudit{sel: selector.New[model.PrivacyAudit](db)}
}

func (r *PrivacyAudit) Enabled() bool {
	return r.sel.Enabled()
}

func (r *PrivacyAudit) Insert(ctx context.Context, audit *model.PrivacyAudit) error {
	return r.sel.Insert(ctx, audit)
}

func (r *PrivacyAudit) GetRecent(ctx context.Context, limit int) ([]*model.PrivacyAudit, error) {
	return r.sel.SelectMany(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Order("created_at DESC").Limit(limit)
	})
}

func (r *PrivacyAudit) Migrate(ctx context.Context) error {
	return r.sel.EnsureTable(ctx)
}
