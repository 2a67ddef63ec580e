package aggregator

import (
	"context"
	"time"

	"github.com/ahmetb/go-linq/v3"
	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/clovid/prisma-sub000/internal/app/appconfig"
	"github.com/clovid/prisma-sub000/internal/model"
	"github.com/clovid/prisma-sub000/internal/pkg/remote"
	"github.com/clovid/prisma-sub000/internal/resource"
)

// TemplateQuestions is the UI template for tabs listing aggregated questions.
const TemplateQuestions = "questions"

// StructureCollector offers a tab for every configured element whose sources occur in the
// task structure. Without a tab tree every structure group is a tab.
type StructureCollector struct {
	Engine *Engine
	Tree   *model.Node
}

var _ TabCollector = (*StructureCollector)(nil)

func (c *StructureCollector) CollectTabs(ctx context.Context, taskID model.ID) ([]model.TabDefinition, error) {
	groups := c.Engine.Structure(ctx, []model.ID{taskID}, nil)
	if len(groups) == 0 {
		return nil, errors.Wrap(ErrNoStructure, taskID.String())
	}

	var candidates []model.TabDefinition
	if c.Tree == nil {
		candidates = lo.Map(groups, func(g *model.Group, _ int) model.TabDefinition {
			return model.TabDefinition{Name: g.Name, Title: g.Name, Template: TemplateQuestions}
		})
	} else {
		present := lo.SliceToMap(groups, func(g *model.Group) (string, bool) { return g.Name, true })
		for _, entry := range c.Tree.Flatten() {
			source, ok := lo.Find(entry.Spec.Source, func(s string) bool { return present[s] })
			if !ok {
				continue
			}
			candidates = append(candidates, model.TabDefinition{
				Name:     entry.Key,
				Title:    source,
				Template: TemplateQuestions,
			})
		}
	}

	var tabs []model.TabDefinition
	linq.From(candidates).
		DistinctByT(func(t model.TabDefinition) string { return t.Name }).
		ToSlice(&tabs)
	return tabs, nil
}

type templateTab struct {
	def     model.TabDefinition
	program *vm.Program
}

// TemplateCollector offers a fixed list of tabs. A tab with a condition is only offered when
// the condition holds for the sub-forms the task provides.
type TemplateCollector struct {
	Client *remote.Client
	Static *resource.StaticCache

	tabs []templateTab
}

var _ TabCollector = (*TemplateCollector)(nil)

func templateEnv(forms []string) map[string]any {
	return map[string]any{"forms": forms}
}

func NewTemplateCollector(client *remote.Client, static *resource.StaticCache, template []appconfig.TemplateTab) (*TemplateCollector, error) {
	c := &TemplateCollector{Client: client, Static: static}
	for _, t := range template {
		tab := templateTab{def: model.TabDefinition{
			Name:     t.Name,
			Title:    lo.Ternary(t.Title != "", t.Title, t.Name),
			Template: lo.Ternary(t.Template != "", t.Template, TemplateQuestions),
		}}
		if t.When != "" {
			program, err := expr.Compile(t.When, expr.Env(templateEnv(nil)), expr.AsBool())
			if err != nil {
				return nil, errors.Wrapf(err, "tab %q: invalid condition", t.Name)
			}
			tab.program = program
		}
		c.tabs = append(c.tabs, tab)
	}
	return c, nil
}

func (c *TemplateCollector) CollectTabs(ctx context.Context, taskID model.ID) ([]model.TabDefinition, error) {
	needsForms := lo.SomeBy(c.tabs, func(t templateTab) bool { return t.program != nil })

	var forms []string
	if needsForms {
		fetched, err := c.Static.Forms(ctx, c.Client, taskID)
		forms = remote.Degrade(ctx, fetched, err, nil, "forms of task "+taskID.String())
	}

	start := time.Now()
	defer func() {
		if l := log.Trace(); l.Enabled() {
			l.Dur("duration", time.Since(start)).Msg("tab conditions evaluated")
		}
	}()

	env := templateEnv(forms)
	var tabs []model.TabDefinition
	for _, t := range c.tabs {
		if t.program != nil {
			result, err := expr.Run(t.program, env)
			if err != nil {
				log.Ctx(ctx).Error().
					Str("evt.name", "tabs.condition_error").
					Str("tab", t.def.Name).
					Err(err).
					Msg("failed to evaluate tab condition")
				continue
			}
			if ok, _ := result.(bool); !ok {
				continue
			}
		}
		tabs = append(tabs, t.def)
	}
	return tabs, nil
}
