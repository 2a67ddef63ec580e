package aggregator

import (
	"context"
	"net/url"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/clovid/prisma-sub000/internal/app/appconfig"
	"github.com/clovid/prisma-sub000/internal/model"
	"github.com/clovid/prisma-sub000/internal/pkg/remote"
	"github.com/clovid/prisma-sub000/internal/resource"
)

const (
	TypeLongList = "longlist"
	TypeCampusMC = "mc"
	TypeRanking  = "ranking"
	TypeFreeText = "freetext"
)

// Campus serves the Campus module. Its questions are answered directly and carry no images.
type Campus struct {
	Client *remote.Client
	Static *resource.StaticCache
}

var _ Adapter = (*Campus)(nil)

func (a *Campus) Name() string {
	return appconfig.BackendCampus
}

func (a *Campus) FetchStructure(ctx context.Context, taskID model.ID) (*model.Structure, error) {
	return a.Static.Structure(ctx, a.Client, taskID)
}

func (a *Campus) FetchAnswers(ctx context.Context, taskID model.ID, filter model.Filter) (model.Answers, error) {
	conf := a.Client.Config()
	path := conf.TaskRoute + "/" + url.PathEscape(taskID.String()) + "/answers"
	body, err := a.Client.GetBody(ctx, path, filter.Query(FilterParams(conf)))
	if err != nil {
		return nil, err
	}
	return parseCampusAnswers(body)
}

// parseCampusAnswers accepts full answer records as well as bare lists of
// {"user_id", "answer"} where answer is a list, a comma joined string or a text.
func parseCampusAnswers(body []byte) (model.Answers, error) {
	r := gjson.ParseBytes(body)
	if !r.IsObject() {
		return nil, errors.Wrap(remote.ErrMalformedResponse, "campus answers must be an object")
	}
	if data := r.Get("data"); data.IsObject() {
		r = data
	}

	answers := model.Answers{}
	var err error
	r.ForEach(func(key, v gjson.Result) bool {
		id := model.ID(key.String())
		switch {
		case v.IsObject():
			var rec model.AnswerRecord
			if err = json.Unmarshal([]byte(v.Raw), &rec); err != nil {
				return false
			}
			answers[id] = &rec
		case v.IsArray():
			rec := &model.AnswerRecord{}
			v.ForEach(func(_, entry gjson.Result) bool {
				user := model.ID(entry.Get("user_id").String())
				answer := entry.Get("answer")
				rec.ChosenPossibilities = append(rec.ChosenPossibilities, model.ChoiceAnswer{
					UserID: user,
					Answer: model.ParseIndices(answer),
				})
				if answer.Type == gjson.String {
					rec.Answers = append(rec.Answers, model.TextAnswer{UserID: user, Answer: answer.Str})
				}
				return true
			})
			answers[id] = rec
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrap(remote.ErrMalformedResponse, err.Error())
	}
	return answers, nil
}

func (a *Campus) ListItems(ctx context.Context, listID model.ID) ([]model.ListItem, error) {
	return a.Static.ListItems(ctx, a.Client, listID)
}

func (a *Campus) Parts(q *model.Question) []*model.Subquestion {
	return []*model.Subquestion{{
		ID:            q.ID,
		Type:          q.Type,
		Title:         q.Title,
		Possibilities: q.Possibilities,
		ListID:        q.ListID,
	}}
}

func (a *Campus) Strategies() map[string]Strategy {
	return map[string]Strategy{
		TypeLongList: Choice(true),
		TypeCampusMC: Choice(false),
		TypeRanking:  Ranking(false),
		TypeFreeText: Open,
	}
}
