// Package aggregator turns upstream test structures and raw answers into per-tab statistics.
// Local modules share one Engine parameterized by an Adapter; modules that aggregate by
// themselves are reached through RemoteBackend.
package aggregator

import (
	"context"

	"github.com/pkg/errors"

	"github.com/clovid/prisma-sub000/internal/model"
)

var (
	ErrInvalidAggregation = errors.New("aggregation returned no elements")
	ErrNoStructure        = errors.New("task structure is unavailable")
)

type Request struct {
	TaskIDs  []model.ID
	Elements model.Elements
	Filter   model.Filter
}

type Result struct {
	Elements map[string]*model.Element
	Warnings []string
	Errors   []string
}

func (r *Result) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

func (r *Result) fail(msg string) {
	r.Errors = append(r.Errors, msg)
}

// Backend aggregates the flattened elements of a tab tree. A failed aggregation may still
// return a Result carrying the module's warnings and errors.
type Backend interface {
	Aggregate(ctx context.Context, req Request) (*Result, error)
}

// TabCollector lists the tabs available for a task, in display order.
type TabCollector interface {
	CollectTabs(ctx context.Context, taskID model.ID) ([]model.TabDefinition, error)
}

// Adapter hides how a module delivers structures, answers and lists.
type Adapter interface {
	Name() string
	FetchStructure(ctx context.Context, taskID model.ID) (*model.Structure, error)
	FetchAnswers(ctx context.Context, taskID model.ID, filter model.Filter) (model.Answers, error)
	ListItems(ctx context.Context, listID model.ID) ([]model.ListItem, error)
	// Parts returns the answerable parts of a question in order.
	Parts(q *model.Question) []*model.Subquestion
	Strategies() map[string]Strategy
}
