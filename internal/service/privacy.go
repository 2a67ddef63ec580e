package service

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/clovid/prisma-sub000/internal/app/appconfig"
	"github.com/clovid/prisma-sub000/internal/model"
	"github.com/clovid/prisma-sub000/internal/pkg/observability"
	"github.com/clovid/prisma-sub000/internal/repo"
)

// Privacy audits requests that go below the configured privacy thresholds. It never blocks:
// confirming such requests is up to the client before it calls in.
type Privacy struct {
	Conf *appconfig.Config
	Repo *repo.PrivacyAudit
}

func NewPrivacy(conf *appconfig.Config, auditRepo *repo.PrivacyAudit) *Privacy {
	return &Privacy{
		Conf: conf,
		Repo: auditRepo,
	}
}

// CheckCohort audits a filter whose cohort is non empty but smaller than the minimum users
// filter. It reports whether an audit entry was written.
func (s *Privacy) CheckCohort(ctx context.Context, ident model.Identity, module string, filter model.Filter) bool {
	size := filter.CohortSize()
	if size == 0 || size >= s.Conf.MinimumUsersFilter {
		return false
	}
	s.record(ctx, &model.PrivacyAudit{
		Kind:      model.AuditCohort,
		UserID:    ident.UserID,
		UserName:  ident.UserName,
		Module:    module,
		CohortIDs: filter.CohortIDs,
		Value:     size,
		Threshold: s.Conf.MinimumUsersFilter,
	})
	return true
}

// CheckDatasets audits a task summarized with fewer datasets than the minimum.
func (s *Privacy) CheckDatasets(ctx context.Context, ident model.Identity, module string, taskID model.ID, filter model.Filter, count int) bool {
	if count <= 0 || count >= s.Conf.MinimumTaskDatasets {
		return false
	}
	s.record(ctx, &model.PrivacyAudit{
		Kind:      model.AuditDatasets,
		UserID:    ident.UserID,
		UserName:  ident.UserName,
		Module:    module,
		TaskID:    nullString(taskID.String()),
		CohortIDs: filter.CohortIDs,
		Value:     count,
		Threshold: s.Conf.MinimumTaskDatasets,
	})
	return true
}

func (s *Privacy) record(ctx context.Context, audit *model.PrivacyAudit) {
	audit.ID = ulid.Make().String()
	observability.PrivacyBreaches.WithLabelValues(audit.Kind).Inc()

	log.Ctx(ctx).Warn().
		Str("evt.name", "privacy.breach").
		Str("audit.id", audit.ID).
		Str("audit.kind", audit.Kind).
		Str("module", audit.Module).
		Str("task", audit.TaskID.String).
		Str("userId", audit.UserID.String).
		Str("userName", audit.UserName.String).
		Ints64("cohortIds", audit.CohortIDs).
		Int("value", audit.Value).
		Int("threshold", audit.Threshold).
		Msg("request below privacy threshold")

	if err := s.Repo.Insert(ctx, audit); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("audit.id", audit.ID).Msg("failed to persist privacy audit entry")
	}
}
