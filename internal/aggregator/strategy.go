package aggregator

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/clovid/prisma-sub000/internal/model"
	"github.com/clovid/prisma-sub000/internal/pkg/remote"
)

// Input is everything a strategy needs to aggregate one subquestion.
type Input struct {
	Question    *model.Question
	Subquestion *model.Subquestion
	Record      *model.AnswerRecord
	Title       string

	adapter        Adapter
	markerSentinel float64
	registerImage  func(ref *model.ImageRef)
}

func (in *Input) record() *model.AnswerRecord {
	if in.Record == nil {
		return &model.AnswerRecord{}
	}
	return in.Record
}

// Strategy aggregates the answers of one question type.
type Strategy func(ctx context.Context, in *Input) *model.Element

// possibilities resolves what the answer indices of a subquestion point at: its list items
// when it is list backed, its own possibilities otherwise.
func possibilities(ctx context.Context, in *Input, fromList bool) []model.Possibility {
	sq := in.Subquestion
	if !fromList && sq.ListID == "" {
		return sq.Possibilities
	}
	if sq.ListID == "" {
		log.Ctx(ctx).Warn().Str("subquestion", sq.ID.String()).Msg("list based subquestion has no list id")
		return sq.Possibilities
	}
	items, err := in.adapter.ListItems(ctx, sq.ListID)
	items = remote.Degrade(ctx, items, err, nil, "list "+sq.ListID.String())

	correct := lo.SliceToMap(sq.Possibilities, func(p model.Possibility) (model.ID, bool) {
		return p.ID, p.IsCorrect
	})
	return lo.Map(items, func(item model.ListItem, _ int) model.Possibility {
		return model.Possibility{ID: item.ID, Text: item.Text, IsCorrect: correct[item.ID]}
	})
}

// Choice tallies chosen indices. Attributes follow the order in which possibilities were
// first chosen; correct possibilities nobody chose follow with frequency 0, then additional
// free form answers.
func Choice(fromList bool) Strategy {
	return func(ctx context.Context, in *Input) *model.Element {
		options := possibilities(ctx, in, fromList)
		byID := lo.SliceToMap(options, func(p model.Possibility) (model.ID, model.Possibility) {
			return p.ID, p
		})

		var order []model.ID
		counts := map[model.ID]int{}
		var additionalOrder []string
		additional := map[string]int{}
		dropped := 0

		for _, rec := range in.record().ChosenPossibilities {
			for _, idx := range rec.Answer {
				id := model.IntID(idx)
				p, ok := byID[id]
				if !ok || p.Text == "" {
					dropped++
					continue
				}
				if _, seen := counts[id]; !seen {
					order = append(order, id)
				}
				counts[id]++
			}
			for _, text := range rec.AdditionalAnswers {
				text = strings.TrimSpace(text)
				if text == "" {
					continue
				}
				if _, seen := additional[text]; !seen {
					additionalOrder = append(additionalOrder, text)
				}
				additional[text]++
			}
		}
		if dropped > 0 {
			log.Ctx(ctx).Debug().
				Str("subquestion", in.Subquestion.ID.String()).
				Int("dropped", dropped).
				Msg("dropped chosen indices without a matching possibility")
		}

		attrs := make([]*model.Attribute, 0, len(order)+len(additionalOrder))
		for _, id := range order {
			p := byID[id]
			attrs = append(attrs, &model.Attribute{Value: p.Text, Frequency: counts[id], IsCorrect: p.IsCorrect})
		}
		for _, p := range options {
			if _, chosen := counts[p.ID]; p.IsCorrect && !chosen && p.Text != "" {
				attrs = append(attrs, &model.Attribute{Value: p.Text, Frequency: 0, IsCorrect: true})
			}
		}
		for _, text := range additionalOrder {
			attrs = append(attrs, &model.Attribute{Value: text, Frequency: additional[text], IsAdditional: true})
		}

		return &model.Element{
			Type:       model.ElementBasic,
			ID:         in.Subquestion.ID,
			Title:      in.Title,
			Attributes: attrs,
		}
	}
}

// Marker collects valid marks and registers the image they were placed on. A mark with the
// sentinel in any axis was not answered.
func Marker(ctx context.Context, in *Input) *model.Element {
	marks := lo.Filter(in.record().Marker, func(m model.Mark, _ int) bool {
		return !m.Hits(in.markerSentinel)
	})

	el := &model.Element{
		Type:       model.ElementMarker,
		ID:         in.Subquestion.ID,
		Title:      in.Title,
		Marks:      marks,
		Population: model.IntPtr(len(marks)),
	}

	if ref := markerImage(in); ref != nil {
		el.Image = ref.ID
		if in.registerImage != nil {
			in.registerImage(ref)
		}
	} else {
		log.Ctx(ctx).Warn().Str("subquestion", in.Subquestion.ID.String()).Msg("marker subquestion has no image")
	}
	return el
}

func markerImage(in *Input) *model.ImageRef {
	images := in.Question.Images
	if id := in.Subquestion.ImageID; id != "" {
		if ref, ok := lo.Find(images, func(img *model.ImageRef) bool { return img != nil && img.ID == id }); ok {
			return ref
		}
		return &model.ImageRef{ID: id}
	}
	if len(images) > 0 {
		return images[0]
	}
	return nil
}

// Open collects non empty free text answers.
func Open(_ context.Context, in *Input) *model.Element {
	answers := lo.Filter(in.record().Answers, func(a model.TextAnswer, _ int) bool {
		return strings.TrimSpace(a.Answer) != ""
	})
	return &model.Element{
		Type:    model.ElementOpen,
		ID:      in.Subquestion.ID,
		Title:   in.Title,
		Answers: answers,
	}
}

// Ranking counts, per possibility, how often it was placed in each rank. Ranks[k] is the
// number of users who put the possibility at position k.
func Ranking(fromList bool) Strategy {
	return func(ctx context.Context, in *Input) *model.Element {
		options := possibilities(ctx, in, fromList)
		byID := lo.SliceToMap(options, func(p model.Possibility) (model.ID, model.Possibility) {
			return p.ID, p
		})

		slots := 0
		for _, rec := range in.record().ChosenPossibilities {
			slots = max(slots, len(rec.Answer))
		}

		var order []model.ID
		ranks := map[model.ID][]int{}
		for _, rec := range in.record().ChosenPossibilities {
			for slot, idx := range rec.Answer {
				id := model.IntID(idx)
				if p, ok := byID[id]; !ok || p.Text == "" {
					continue
				}
				if _, seen := ranks[id]; !seen {
					order = append(order, id)
					ranks[id] = make([]int, slots)
				}
				ranks[id][slot]++
			}
		}
		for _, p := range options {
			if _, seen := ranks[p.ID]; !seen && p.Text != "" {
				order = append(order, p.ID)
				ranks[p.ID] = make([]int, slots)
			}
		}

		attrs := lo.Map(order, func(id model.ID, _ int) *model.Attribute {
			return &model.Attribute{
				Value:     byID[id].Text,
				Frequency: lo.Sum(ranks[id]),
				IsCorrect: byID[id].IsCorrect,
				Ranks:     ranks[id],
			}
		})

		return &model.Element{
			Type:       model.ElementRanking,
			ID:         in.Subquestion.ID,
			Title:      in.Title,
			Attributes: attrs,
		}
	}
}
