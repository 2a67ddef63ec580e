package service

import (
	"context"
	"net/url"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
	"gopkg.in/guregu/null.v3"

	"github.com/clovid/prisma-sub000/internal/aggregator"
	"github.com/clovid/prisma-sub000/internal/model"
	"github.com/clovid/prisma-sub000/internal/pkg/remote"
)

// Module answers requests about one upstream module: dataset counts, task lists, tabs and
// summaries, auditing cohort filters and small tasks on the way.
type Module struct {
	Modules    *aggregator.Modules
	Collection *Collection
	Privacy    *Privacy
}

func NewModule(modules *aggregator.Modules, collection *Collection, privacy *Privacy) *Module {
	return &Module{
		Modules:    modules,
		Collection: collection,
		Privacy:    privacy,
	}
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func (s *Module) List() []model.ModuleInfo {
	return lo.Map(s.Modules.All(), func(m *aggregator.Module, _ int) model.ModuleInfo {
		return model.ModuleInfo{Name: m.Conf.Name, Title: m.Conf.Title, Backend: m.Conf.Backend}
	})
}

// CountDatasets counts the datasets matching filter, of one task when taskID is set or of the
// whole module otherwise. An unreachable module counts as zero.
func (s *Module) CountDatasets(ctx context.Context, ident model.Identity, module string, taskID model.ID, filter model.Filter) (int, error) {
	m, err := s.Modules.Get(module)
	if err != nil {
		return 0, err
	}
	s.Privacy.CheckCohort(ctx, ident, module, filter)
	return s.count(ctx, m, taskID, filter), nil
}

func (s *Module) count(ctx context.Context, m *aggregator.Module, taskID model.ID, filter model.Filter) int {
	path := m.Conf.TaskRoute + "/count"
	if taskID != "" {
		path = m.Conf.TaskRoute + "/" + url.PathEscape(taskID.String()) + "/count"
	}
	body, err := m.Client.GetBody(ctx, path, filter.Query(aggregator.FilterParams(m.Conf)))
	if err != nil {
		return remote.Degrade(ctx, 0, err, 0, "dataset count")
	}
	return parseCount(body)
}

// parseCount accepts {"count": N} as well as a bare N.
func parseCount(body []byte) int {
	r := gjson.ParseBytes(body)
	if r.IsObject() {
		r = r.Get("count")
	}
	return int(r.Int())
}

// Tasks lists the tasks of a module with the number of datasets matching filter. An
// unreachable module has no tasks.
func (s *Module) Tasks(ctx context.Context, ident model.Identity, module string, filter model.Filter) ([]*model.Task, error) {
	m, err := s.Modules.Get(module)
	if err != nil {
		return nil, err
	}
	s.Privacy.CheckCohort(ctx, ident, module, filter)

	body, err := m.Client.GetBody(ctx, m.Conf.TaskRoute, filter.Query(aggregator.FilterParams(m.Conf)))
	if err != nil {
		return remote.Degrade(ctx, []*model.Task{}, err, []*model.Task{}, "tasks"), nil
	}
	r := gjson.ParseBytes(body)
	if r.IsObject() {
		r = r.Get("data")
	}
	tasks := []*model.Task{}
	if err := json.Unmarshal([]byte(lo.Ternary(r.IsArray(), r.Raw, "[]")), &tasks); err != nil {
		return remote.Degrade(ctx, tasks, errors.Wrap(remote.ErrMalformedResponse, err.Error()), []*model.Task{}, "tasks"), nil
	}
	return tasks, nil
}

// SupportedTabs lists the tabs the client should offer for a task.
func (s *Module) SupportedTabs(ctx context.Context, module string, taskID model.ID) ([]model.TabDefinition, error) {
	m, err := s.Modules.Get(module)
	if err != nil {
		return nil, err
	}
	return m.Tabs.CollectTabs(ctx, taskID)
}

// SummarizedDatasets aggregates the answers of one or more tasks into the module's tab tree.
// Tasks sharing group names are aggregated together.
func (s *Module) SummarizedDatasets(ctx context.Context, ident model.Identity, module string, taskIDs []model.ID, filter model.Filter) (*model.PopulatedNode, error) {
	m, err := s.Modules.Get(module)
	if err != nil {
		return nil, err
	}
	if len(taskIDs) == 0 {
		return nil, errors.New("no task given")
	}

	s.Privacy.CheckCohort(ctx, ident, module, filter)
	for _, id := range taskIDs {
		s.Privacy.CheckDatasets(ctx, ident, module, id, filter, s.count(ctx, m, id, filter))
	}

	log.Ctx(ctx).Debug().
		Str("module", module).
		Strs("tasks", lo.Map(taskIDs, func(id model.ID, _ int) string { return id.String() })).
		Int("cohort", filter.CohortSize()).
		Int("timespans", len(filter.Timespans)).
		Msg("summarizing datasets")
	return s.Collection.CollectData(ctx, m, taskIDs, filter)
}
