package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/clovid/prisma-sub000/internal/aggregator"
	"github.com/clovid/prisma-sub000/internal/model"
)

// Collection aggregates a module's tab tree: it flattens the tree into elements, lets the
// module backend aggregate them and puts the results back into the tree's shape.
type Collection struct{}

func NewCollection() *Collection {
	return &Collection{}
}

func (s *Collection) CollectData(ctx context.Context, m *aggregator.Module, taskIDs []model.ID, filter model.Filter) (*model.PopulatedNode, error) {
	l := log.Ctx(ctx).With().Str("component", "collection").Str("module", m.Conf.Name).Logger()

	tree := m.ElementTree(ctx, taskIDs)
	elements := tree.Flatten()
	if len(elements) == 0 {
		return tree.Populate(nil, nil), nil
	}

	res, err := m.Backend.Aggregate(ctx, aggregator.Request{
		TaskIDs:  taskIDs,
		Elements: elements,
		Filter:   filter,
	})
	if res != nil {
		for _, w := range res.Warnings {
			l.Warn().Str("evt.name", "aggregation.warning").Msg(w)
		}
		for _, e := range res.Errors {
			l.Error().Str("evt.name", "aggregation.error").Msg(e)
		}
	}
	if err != nil {
		l.Error().Err(err).Msg("aggregation failed")
		return nil, err
	}
	if len(res.Elements) == 0 {
		l.Error().Strs("elements", elements.Keys()).Msg("aggregation returned no elements")
		return nil, errors.Wrap(aggregator.ErrInvalidAggregation, m.Conf.Name)
	}

	populated := tree.Populate(res.Elements, func(key string) {
		l.Warn().Str("element", key).Msg("aggregation result lacks configured element")
	})
	for key := range res.Elements {
		l.Debug().Str("element", key).Msg("aggregation returned unconfigured element")
	}

	populated.Walk(func(_ string, e *model.Element) {
		e.PruneGroupedDistributions(m.Conf.NullSentinel)
	})
	return populated, nil
}
