package aggregator

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/clovid/prisma-sub000/internal/app/appconfig"
	"github.com/clovid/prisma-sub000/internal/model"
	"github.com/clovid/prisma-sub000/internal/pkg/async"
	"github.com/clovid/prisma-sub000/internal/pkg/labels"
	"github.com/clovid/prisma-sub000/internal/pkg/observability"
	"github.com/clovid/prisma-sub000/internal/pkg/remote"
	"github.com/clovid/prisma-sub000/internal/resource"
)

// Engine aggregates answers in process for question based modules. Element sources name the
// structure groups that make up a tab.
type Engine struct {
	Adapter Adapter
	Images  *resource.ImageVolumes
	Client  *remote.Client
	Conf    *appconfig.ModuleConfig
	// Concurrency bounds how many tasks are fetched at once.
	Concurrency int
}

var _ Backend = (*Engine)(nil)

func (e *Engine) logger(ctx context.Context) zerolog.Logger {
	return log.Ctx(ctx).With().Str("component", "aggregator").Str("module", e.Conf.Name).Logger()
}

// Structure fetches the structures of every task and merges groups sharing a name, keeping
// the order in which groups first appear.
func (e *Engine) Structure(ctx context.Context, taskIDs []model.ID, res *Result) []*model.Group {
	type fetched struct {
		structure *model.Structure
		err       error
	}
	results, _ := async.Map(taskIDs, e.Concurrency, func(id model.ID) (fetched, error) {
		st, err := e.Adapter.FetchStructure(ctx, id)
		return fetched{structure: st, err: err}, nil
	})

	var groups []*model.Group
	byName := map[string]*model.Group{}
	for i, f := range results {
		if f.err != nil || f.structure == nil {
			l := e.logger(ctx)
			l.Error().Err(f.err).Str("task", taskIDs[i].String()).Msg("failed to fetch task structure")
			if res != nil {
				res.fail("structure of task " + taskIDs[i].String() + " is unavailable")
			}
			continue
		}
		for _, g := range f.structure.Groups {
			if g == nil {
				continue
			}
			merged, ok := byName[g.Name]
			if !ok {
				merged = &model.Group{Name: g.Name}
				byName[g.Name] = merged
				groups = append(groups, merged)
			}
			merged.Questions = append(merged.Questions, g.Questions...)
		}
	}
	return groups
}

// Answers fetches the answers of every task. A task whose answers cannot be fetched
// contributes none.
func (e *Engine) Answers(ctx context.Context, taskIDs []model.ID, filter model.Filter) model.Answers {
	results, _ := async.Map(taskIDs, e.Concurrency, func(id model.ID) (model.Answers, error) {
		answers, err := e.Adapter.FetchAnswers(ctx, id, filter)
		return remote.Degrade(ctx, answers, err, nil, "answers of task "+id.String()), nil
	})

	merged := model.Answers{}
	for _, answers := range results {
		for id, rec := range answers {
			if rec == nil {
				continue
			}
			mergeRecord(merged, id, rec)
		}
	}
	return merged
}

// DefaultTree derives a tab tree with one tab per structure group.
func (e *Engine) DefaultTree(ctx context.Context, taskIDs []model.ID) *model.Node {
	root := &model.Node{}
	for _, g := range e.Structure(ctx, taskIDs, nil) {
		root.Children = append(root.Children, &model.Node{
			Key:  g.Name,
			Leaf: &model.ElementSpec{Source: []string{g.Name}, Type: model.ElementTab},
		})
	}
	return root
}

func (e *Engine) Aggregate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	defer func() {
		observability.AggregationDuration.WithLabelValues(e.Conf.Name, e.Adapter.Name()).Observe(time.Since(start).Seconds())
	}()

	res := &Result{Elements: map[string]*model.Element{}}
	groups := e.Structure(ctx, req.TaskIDs, res)
	if len(groups) == 0 {
		return res, nil
	}
	answers := e.Answers(ctx, req.TaskIDs, req.Filter)

	byName := lo.KeyBy(groups, func(g *model.Group) string { return g.Name })
	for _, entry := range req.Elements {
		tab := &model.Element{Type: model.ElementTab, Title: entry.Key}
		var refs []*model.ImageRef
		found := false
		for _, source := range entry.Spec.Source {
			g, ok := byName[source]
			if !ok {
				continue
			}
			if !found {
				tab.Title = g.Name
				found = true
			}
			questions, groupRefs := e.aggregateGroup(ctx, g, answers)
			tab.Questions = append(tab.Questions, questions...)
			refs = append(refs, groupRefs...)
		}
		if !found {
			res.warn("no group found for element " + entry.Key)
			continue
		}

		images, err := e.images(ctx, refs)
		if err != nil {
			return nil, err
		}
		tab.Images = images
		res.Elements[entry.Key] = tab
	}
	return res, nil
}

// images builds, merges and slices the images referenced by a tab. Only a volume without
// dimensions fails the aggregation; other failures drop the image.
func (e *Engine) images(ctx context.Context, refs []*model.ImageRef) ([]*model.ImageVolume, error) {
	if len(refs) == 0 || e.Images == nil {
		return nil, nil
	}
	volumes := make([]*model.ImageVolume, 0, len(refs))
	for _, ref := range refs {
		v, err := e.Images.Build(ctx, e.Client, ref, model.ImageTypeImage)
		if errors.Is(err, resource.ErrMissingDimensions) {
			l := e.logger(ctx)
			l.Error().Err(err).Msg("cannot build image volume")
			return nil, err
		}
		if err != nil {
			l := e.logger(ctx)
			l.Error().Err(err).Str("image", ref.ID.String()).Msg("failed to build image volume, skipping image")
			continue
		}
		volumes = append(volumes, v)
	}
	return e.Images.LoadSlices(ctx, e.Client, model.MergeImagesByID(volumes))
}

type pendingLink struct {
	element *model.Element
	target  int
}

// groupState collects what the second pass over a group needs.
type groupState struct {
	// parts holds the element of every subquestion in group order, nil where none was made.
	parts  []*model.Element
	links  []pendingLink
	images []*model.ImageRef
}

func (e *Engine) aggregateGroup(ctx context.Context, g *model.Group, answers model.Answers) ([]*model.Element, []*model.ImageRef) {
	st := &groupState{}
	var out []*model.Element
	for _, q := range g.Questions {
		if q == nil {
			continue
		}
		out = append(out, e.aggregateQuestion(ctx, q, answers, st)...)
	}

	for _, link := range st.links {
		if link.target < 0 || link.target >= len(st.parts) || st.parts[link.target] == nil {
			l := e.logger(ctx)
			l.Warn().Str("element", link.element.ID.String()).Int("target", link.target).Msg("link target does not exist")
			continue
		}
		target := st.parts[link.target]
		if target.Type != model.ElementMarker {
			l := e.logger(ctx)
			l.Warn().Str("element", link.element.ID.String()).Str("targetType", target.Type).Msg("link target is not a marker")
			continue
		}
		link.element.Linked = target.ID
	}
	return out, st.images
}

// aggregateQuestion returns the elements for one question: its pre elements followed by
// either the single aggregated subquestion or a group wrapping all of them.
func (e *Engine) aggregateQuestion(ctx context.Context, q *model.Question, answers model.Answers, st *groupState) []*model.Element {
	d := labels.Parse(q.Labels)
	parts := e.Adapter.Parts(q)
	collapse := !d.HasTitle() && !q.HasOverlayImages() && len(parts) <= 1

	out := preElements(d.Pre)
	for _, img := range q.Images {
		if img != nil && img.Overlay != nil {
			st.images = append(st.images, img)
		}
	}

	var children []*model.Element
	for i, sq := range parts {
		sd := d.Subquestion(i).With(labels.Parse(sq.Labels))
		el := e.aggregatePart(ctx, q, sq, sd, collapse, answers, st)
		st.parts = append(st.parts, el)
		if el == nil {
			continue
		}
		children = append(children, preElements(sd.Pre)...)
		children = append(children, el)
	}

	if collapse {
		return append(out, children...)
	}
	return append(out, &model.Element{
		Type:      model.ElementGroup,
		ID:        q.ID,
		Title:     e.title(d.Title.String, q.Title),
		Questions: children,
	})
}

// aggregatePart aggregates one subquestion. Inside a group the question title belongs to the
// group, so it is only a fallback for collapsed questions.
func (e *Engine) aggregatePart(ctx context.Context, q *model.Question, sq *model.Subquestion, sd *labels.Directives,
	collapse bool, answers model.Answers, st *groupState,
) *model.Element {
	strategy, ok := e.Adapter.Strategies()[sq.Type]
	if !ok {
		l := e.logger(ctx)
		l.Warn().Str("subquestion", sq.ID.String()).Str("type", sq.Type).Msg("no aggregation for question type")
		return nil
	}

	el := strategy(ctx, &Input{
		Question:       q,
		Subquestion:    sq,
		Record:         answers[sq.ID],
		Title:          e.title(sd.Title.String, sq.Title, lo.Ternary(collapse, q.Title, "")),
		adapter:        e.Adapter,
		markerSentinel: float64(*e.Conf.MarkerSentinel),
		registerImage: func(ref *model.ImageRef) {
			st.images = append(st.images, ref)
		},
	})
	if el != nil && sd.Link.Valid {
		st.links = append(st.links, pendingLink{element: el, target: int(sd.Link.Int64)})
	}
	return el
}

// title picks the first non empty candidate and strips configured boilerplate from it.
func (e *Engine) title(candidates ...string) string {
	t, _ := lo.Find(candidates, func(s string) bool { return strings.TrimSpace(s) != "" })
	for _, r := range e.Conf.TextReplacements {
		t = strings.ReplaceAll(t, r.Search, r.Replace)
	}
	return strings.TrimSpace(t)
}

func preElements(pre []labels.PreElement) []*model.Element {
	return lo.Map(pre, func(p labels.PreElement, _ int) *model.Element {
		return &model.Element{Type: p.Type, Text: p.Value}
	})
}
