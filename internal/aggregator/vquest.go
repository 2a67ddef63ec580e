package aggregator

import (
	"context"
	"net/url"
	"sort"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/clovid/prisma-sub000/internal/app/appconfig"
	"github.com/clovid/prisma-sub000/internal/model"
	"github.com/clovid/prisma-sub000/internal/pkg/remote"
	"github.com/clovid/prisma-sub000/internal/resource"
)

const (
	TypeMultipleChoice = "MC"
	TypeMultiMatch     = "MM"
	TypeDragDrop       = "DD"
	TypeMarker         = "Marker"
	TypeOpen           = "Open"
)

// FilterParams returns how a module expects the filter in its query string.
func FilterParams(conf *appconfig.ModuleConfig) model.FilterParams {
	return model.FilterParams{
		Cohort:           conf.Parameters.Cohort,
		Timespans:        conf.Parameters.Timespans,
		TimestampDivisor: conf.Parameters.TimestampDivisor,
	}
}

func answersPath(conf *appconfig.ModuleConfig, taskID model.ID) string {
	return conf.TaskRoute + "/" + url.PathEscape(taskID.String()) + "/answers"
}

// VQuest serves the classic VQuest module, which delivers answers keyed by subquestion id.
type VQuest struct {
	Client *remote.Client
	Static *resource.StaticCache
}

var _ Adapter = (*VQuest)(nil)

func (a *VQuest) Name() string {
	return appconfig.BackendVQuest
}

func (a *VQuest) FetchStructure(ctx context.Context, taskID model.ID) (*model.Structure, error) {
	return a.Static.Structure(ctx, a.Client, taskID)
}

func (a *VQuest) FetchAnswers(ctx context.Context, taskID model.ID, filter model.Filter) (model.Answers, error) {
	conf := a.Client.Config()
	var answers model.Answers
	if err := a.Client.GetJSON(ctx, answersPath(conf, taskID), filter.Query(FilterParams(conf)), &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

func (a *VQuest) ListItems(ctx context.Context, listID model.ID) ([]model.ListItem, error) {
	return a.Static.ListItems(ctx, a.Client, listID)
}

func (a *VQuest) Parts(q *model.Question) []*model.Subquestion {
	return q.Subquestions
}

func (a *VQuest) Strategies() map[string]Strategy {
	return map[string]Strategy{
		TypeMultipleChoice: Choice(false),
		TypeMultiMatch:     Choice(false),
		TypeDragDrop:       Choice(true),
		TypeMarker:         Marker,
		TypeOpen:           Open,
	}
}

// VQuestOnline serves VQuest online, which answers with a list of records each naming its
// subquestion, optionally wrapped in {"data": ...}.
type VQuestOnline struct {
	VQuest
}

func (a *VQuestOnline) Name() string {
	return appconfig.BackendVQuestOnline
}

func (a *VQuestOnline) FetchAnswers(ctx context.Context, taskID model.ID, filter model.Filter) (model.Answers, error) {
	conf := a.Client.Config()
	body, err := a.Client.GetBody(ctx, answersPath(conf, taskID), filter.Query(FilterParams(conf)))
	if err != nil {
		return nil, err
	}
	return parseAnswerList(body)
}

func parseAnswerList(body []byte) (model.Answers, error) {
	r := gjson.ParseBytes(body)
	if r.IsObject() {
		if data := r.Get("data"); data.Exists() {
			r = data
		}
	}

	answers := model.Answers{}
	switch {
	case r.IsObject():
		if err := json.Unmarshal([]byte(r.Raw), &answers); err != nil {
			return nil, errors.Wrap(remote.ErrMalformedResponse, err.Error())
		}
	case r.IsArray():
		var err error
		r.ForEach(func(_, item gjson.Result) bool {
			id := item.Get("subquestion_id")
			if !id.Exists() {
				return true
			}
			var rec model.AnswerRecord
			if err = json.Unmarshal([]byte(item.Raw), &rec); err != nil {
				return false
			}
			mergeRecord(answers, model.ID(id.String()), &rec)
			return true
		})
		if err != nil {
			return nil, errors.Wrap(remote.ErrMalformedResponse, err.Error())
		}
	}
	return answers, nil
}

func mergeRecord(answers model.Answers, id model.ID, rec *model.AnswerRecord) {
	existing, ok := answers[id]
	if !ok {
		answers[id] = rec
		return
	}
	existing.ChosenPossibilities = append(existing.ChosenPossibilities, rec.ChosenPossibilities...)
	existing.Marker = append(existing.Marker, rec.Marker...)
	existing.Answers = append(existing.Answers, rec.Answers...)
}

// VQuestHybrid uses the VQuest online structure but takes answers from a dataset provider
// module, translating the provider's subquestion ids through the configured id map.
type VQuestHybrid struct {
	VQuestOnline
	Provider *remote.Client
}

func (a *VQuestHybrid) Name() string {
	return appconfig.BackendVQuestHybrid
}

func (a *VQuestHybrid) FetchAnswers(ctx context.Context, taskID model.ID, filter model.Filter) (model.Answers, error) {
	conf := a.Provider.Config()
	body, err := a.Provider.GetBody(ctx, answersPath(conf, taskID), filter.Query(FilterParams(conf)))
	if err != nil {
		return nil, err
	}
	provided, err := parseAnswerList(body)
	if err != nil {
		return nil, err
	}
	return a.remap(ctx, provided), nil
}

// remap drops unanswered entries and moves the rest to their online subquestion ids.
// Provider ids missing from the map are discarded. Provider ids are visited in ascending order,
// numerically where both are numbers, so when two of them map to the same online id the
// higher one wins.
func (a *VQuestHybrid) remap(ctx context.Context, provided model.Answers) model.Answers {
	l := log.Ctx(ctx).With().Str("component", "aggregator").Str("module", a.Client.Module).Logger()
	sentinel := float64(*a.Client.Config().MarkerSentinel)
	idMap := a.Client.Config().IDMap.Subquestions

	out := model.Answers{}
	origin := map[model.ID]model.ID{}
	for _, id := range providerOrder(provided) {
		rec := provided[id]
		if rec == nil {
			continue
		}
		filtered := filterUnanswered(rec, sentinel)

		mapped, ok := idMap[id.String()]
		if !ok {
			l.Warn().Str("subquestion", id.String()).Msg("no id mapping for provider subquestion, discarding its answers")
			continue
		}
		target := model.IntID(mapped)
		if previous, taken := origin[target]; taken {
			l.Warn().
				Str("subquestion", id.String()).
				Str("previous", previous.String()).
				Str("target", target.String()).
				Msg("provider subquestions map to the same id, replacing earlier answers")
		}
		origin[target] = id
		out[target] = filtered
	}
	return out
}

func providerOrder(provided model.Answers) []model.ID {
	ids := make([]model.ID, 0, len(provided))
	for id := range provided {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i].String())
		b, errB := strconv.Atoi(ids[j].String())
		if errA == nil && errB == nil && a != b {
			return a < b
		}
		return ids[i] < ids[j]
	})
	return ids
}

func filterUnanswered(rec *model.AnswerRecord, sentinel float64) *model.AnswerRecord {
	out := &model.AnswerRecord{Answers: rec.Answers}
	for _, c := range rec.ChosenPossibilities {
		valid := true
		for _, idx := range c.Answer {
			if idx < 0 || float64(idx) == sentinel {
				valid = false
				break
			}
		}
		if valid {
			out.ChosenPossibilities = append(out.ChosenPossibilities, c)
		}
	}
	for _, m := range rec.Marker {
		if !m.Hits(sentinel) {
			out.Marker = append(out.Marker, m)
		}
	}
	return out
}
