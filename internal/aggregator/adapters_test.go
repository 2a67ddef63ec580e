package aggregator

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/clovid/prisma-sub000/internal/app/appconfig"
	"github.com/clovid/prisma-sub000/internal/model"
	"github.com/clovid/prisma-sub000/internal/pkg/cache"
	"github.com/clovid/prisma-sub000/internal/pkg/remote"
	"github.com/clovid/prisma-sub000/internal/resource"
)

func upstream(t *testing.T, name string, handler http.Handler) *remote.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	conf := testModuleConfig()
	conf.Name = name
	conf.BaseURL = srv.URL
	conf.TaskRoute = "tests"
	conf.Parameters = appconfig.ParameterConfig{Cohort: "cads_ids", Timespans: "timespans", TimestampDivisor: 1000}
	return remote.NewClient(conf, cache.NewMemoryStore(), remote.Options{Timeout: 5 * time.Second, Attempts: 1})
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}
}

func TestVQuestAnswersCarryTheFilter(t *testing.T) {
	var query string
	client := upstream(t, "vquest", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"5": {"chosen_possibilities": [{"user_id": 1, "answer": [0, 1]}]}}`))
	}))
	a := &VQuest{Client: client, Static: resource.NewStaticCache(cache.NewMemoryStore())}

	answers, err := a.FetchAnswers(context.Background(), "9", model.NewFilter([]int64{3, 4}, []string{"1000,5000"}))
	require.NoError(t, err)
	assert.Equal(t, model.Indices{0, 1}, answers["5"].ChosenPossibilities[0].Answer)
	assert.Contains(t, query, "cads_ids=3%2C4")
	assert.Contains(t, query, "timespans%5B%5D=1%2C5")
}

func TestParseAnswerList(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "object", body: `{"5": {"answers": [{"user_id": 1, "answer": "a"}, {"user_id": 2, "answer": "b"}]}}`},
		{name: "list", body: `[
			{"subquestion_id": 5, "answers": [{"user_id": 1, "answer": "a"}]},
			{"subquestion_id": "5", "answers": [{"user_id": 2, "answer": "b"}]},
			{"answers": [{"user_id": 3, "answer": "orphan"}]}
		]`},
		{name: "wrapped list", body: `{"data": [{"subquestion_id": 5, "answers": [{"user_id": 1, "answer": "a"}, {"user_id": 2, "answer": "b"}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answers, err := parseAnswerList([]byte(tt.body))
			require.NoError(t, err)
			require.Len(t, answers, 1)
			assert.Equal(t, []model.TextAnswer{{UserID: "1", Answer: "a"}, {UserID: "2", Answer: "b"}}, answers["5"].Answers)
		})
	}
}

func TestHybridRemapsProviderAnswers(t *testing.T) {
	provider := upstream(t, "provider", respond(`[
		{"subquestion_id": 100, "chosen_possibilities": [{"user_id": 1, "answer": [2]}, {"user_id": 2, "answer": [-1]}]},
		{"subquestion_id": 101, "marker": [{"user_id": 1, "x": 1, "y": 2, "z": 3}, {"user_id": 2, "x": -1, "y": -1, "z": -1}]},
		{"subquestion_id": 102, "answers": [{"user_id": 1, "answer": "lost"}]}
	]`))
	online := upstream(t, "online", http.NotFoundHandler())
	online.Config().IDMap.Subquestions = map[string]int{"100": 10, "101": 11}

	a := &VQuestHybrid{
		VQuestOnline: VQuestOnline{VQuest: VQuest{Client: online}},
		Provider:     provider,
	}
	answers, err := a.FetchAnswers(context.Background(), "1", model.Filter{})
	require.NoError(t, err)

	require.Len(t, answers, 2)
	require.Contains(t, answers, model.ID("10"))
	assert.Equal(t, []model.ChoiceAnswer{{UserID: "1", Answer: model.Indices{2}}}, answers["10"].ChosenPossibilities)
	require.Contains(t, answers, model.ID("11"))
	assert.Equal(t, []model.Mark{{UserID: "1", X: 1, Y: 2, Z: 3}}, answers["11"].Marker)
}

func TestHybridCollidingMappingsKeepOne(t *testing.T) {
	online := upstream(t, "online", http.NotFoundHandler())
	online.Config().IDMap.Subquestions = map[string]int{"2": 10, "9": 10, "10": 10}
	a := &VQuestHybrid{VQuestOnline: VQuestOnline{VQuest: VQuest{Client: online}}}

	for range 20 {
		out := a.remap(context.Background(), model.Answers{
			"2":  {Answers: []model.TextAnswer{{UserID: "1", Answer: "a"}}},
			"9":  {Answers: []model.TextAnswer{{UserID: "2", Answer: "b"}}},
			"10": {Answers: []model.TextAnswer{{UserID: "3", Answer: "c"}}},
		})
		require.Len(t, out, 1)
		assert.Equal(t, []model.TextAnswer{{UserID: "3", Answer: "c"}}, out["10"].Answers)
	}
}

func TestCampusAnswers(t *testing.T) {
	answers, err := parseCampusAnswers([]byte(`{
		"1": [{"user_id": 1, "answer": "0,2"}, {"user_id": 2, "answer": [1]}],
		"2": [{"user_id": 1, "answer": "Schmerzen im Knie"}],
		"3": {"chosen_possibilities": [{"user_id": 1, "answer": "3,1"}]}
	}`))
	require.NoError(t, err)

	assert.Equal(t, model.Indices{0, 2}, answers["1"].ChosenPossibilities[0].Answer)
	assert.Equal(t, model.Indices{1}, answers["1"].ChosenPossibilities[1].Answer)
	assert.Equal(t, []model.TextAnswer{{UserID: "1", Answer: "Schmerzen im Knie"}}, answers["2"].Answers)
	assert.Equal(t, model.Indices{3, 1}, answers["3"].ChosenPossibilities[0].Answer)

	_, err = parseCampusAnswers([]byte(`[1, 2]`))
	assert.ErrorIs(t, err, remote.ErrMalformedResponse)
}

func TestCampusAggregation(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/tests/1", respond(`{"id": 1, "groups": [{"name": "Anamnese", "questions": [
		{"id": 1, "type": "mc", "title": "Schmerzort", "possibilities": [{"id": 0, "text": "Knie", "is_correct": true}, {"id": 1, "text": "Hüfte"}]},
		{"id": 2, "type": "freetext", "title": "Beschreibung"},
		{"id": 3, "type": "ranking", "title": "Reihenfolge", "possibilities": [{"id": 1, "text": "Röntgen"}, {"id": 2, "text": "MRT"}]}
	]}]}`))
	mux.Handle("/tests/1/answers", respond(`{
		"1": [{"user_id": 1, "answer": "1"}, {"user_id": 2, "answer": "0,1"}],
		"2": [{"user_id": 1, "answer": "Stechend"}, {"user_id": 2, "answer": ""}],
		"3": [{"user_id": 1, "answer": "2,1"}]
	}`))
	client := upstream(t, "campus", mux)
	e := &Engine{
		Adapter:     &Campus{Client: client, Static: resource.NewStaticCache(cache.NewMemoryStore())},
		Client:      client,
		Conf:        client.Config(),
		Concurrency: 1,
	}

	tab := aggregateTab(t, e, "Anamnese")
	require.Len(t, tab.Questions, 3)

	mcEl := tab.Questions[0]
	assert.Equal(t, "Schmerzort", mcEl.Title)
	assert.Equal(t, []*model.Attribute{
		{Value: "Hüfte", Frequency: 2},
		{Value: "Knie", Frequency: 1, IsCorrect: true},
	}, mcEl.Attributes)

	open := tab.Questions[1]
	assert.Equal(t, model.ElementOpen, open.Type)
	assert.Equal(t, []model.TextAnswer{{UserID: "1", Answer: "Stechend"}}, open.Answers)

	ranking := tab.Questions[2]
	assert.Equal(t, model.ElementRanking, ranking.Type)
	assert.Equal(t, "MRT", ranking.Attributes[0].Value)
	assert.Equal(t, []int{1, 0}, ranking.Attributes[0].Ranks)
}

func TestRemoteBackend(t *testing.T) {
	var body []byte
	client := upstream(t, "medforge", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/aggregate", r.URL.Path)
		body, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"elements": {"bmi": {"type": "frequency-distribution", "attributes": [{"value": "normal", "frequency": 3}]}}, "warnings": "slow"}`))
	}))
	b := &RemoteBackend{Client: client}

	res, err := b.Aggregate(context.Background(), Request{
		TaskIDs:  []model.ID{"12"},
		Elements: model.Elements{{Key: "bmi", Spec: &model.ElementSpec{Source: []string{"BMI"}, Type: model.ElementFrequencyDistribution}}},
		Filter:   model.NewFilter([]int64{5, 6}, []string{"2000,4000"}),
	})
	require.NoError(t, err)

	assert.Equal(t, `"BMI"`, gjson.GetBytes(body, "elements.bmi.source").Raw)
	assert.Equal(t, `["12"]`, gjson.GetBytes(body, "task_ids").Raw)
	assert.Equal(t, `[5,6]`, gjson.GetBytes(body, "cads_ids").Raw)
	assert.Equal(t, `[[2,4]]`, gjson.GetBytes(body, "timespans").Raw)

	require.Contains(t, res.Elements, "bmi")
	assert.Equal(t, 3, res.Elements["bmi"].Attributes[0].Frequency)
	assert.Equal(t, []string{"slow"}, res.Warnings)
}

func TestRemoteBackendRejectsEmptyElements(t *testing.T) {
	for _, body := range []string{`{"elements": {}}`, `{"success": false}`, `{"elements": []}`} {
		client := upstream(t, "medforge", respond(body))
		_, err := (&RemoteBackend{Client: client}).Aggregate(context.Background(), Request{TaskIDs: []model.ID{"1"}})
		assert.ErrorIs(t, err, ErrInvalidAggregation, body)
	}
}

func TestRemoteBackendKeepsUnmodelledFields(t *testing.T) {
	client := upstream(t, "medforge", respond(`{"elements": {
		"age": {"type": "frequency-distribution", "attributes": [{"value": 42, "frequency": 2}], "total": 2, "unit": "years"},
		"notes": {"type": "free-text", "answers": ["stechend", "dumpf"]}
	}}`))

	res, err := (&RemoteBackend{Client: client}).Aggregate(context.Background(), Request{TaskIDs: []model.ID{"1"}})
	require.NoError(t, err)
	require.Len(t, res.Elements, 2)

	age, err := json.Marshal(res.Elements["age"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"type": "frequency-distribution", "attributes": [{"value": 42, "frequency": 2}], "total": 2, "unit": "years"}`, string(age))

	notes, err := json.Marshal(res.Elements["notes"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"type": "free-text", "answers": ["stechend", "dumpf"]}`, string(notes))
}

func TestRemoteBackendDropsUndecodableElements(t *testing.T) {
	client := upstream(t, "medforge", respond(`{"elements": {
		"bmi": {"type": "frequency-distribution", "attributes": [{"value": "normal", "frequency": 3}]},
		"weight": {"type": "frequency-distribution", "attributes": "many"},
		"height": {"type": 7},
		"pulse": "n/a"
	}}`))

	res, err := (&RemoteBackend{Client: client}).Aggregate(context.Background(), Request{TaskIDs: []model.ID{"1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"bmi"}, lo.Keys(res.Elements))
}

func TestRemoteBackendReturnsMessagesOfInvalidResult(t *testing.T) {
	client := upstream(t, "medforge", respond(`{"elements": [], "warnings": "cohort too small", "errors": ["structure unavailable"]}`))

	res, err := (&RemoteBackend{Client: client}).Aggregate(context.Background(), Request{TaskIDs: []model.ID{"1"}})
	assert.ErrorIs(t, err, ErrInvalidAggregation)
	require.NotNil(t, res)
	assert.Equal(t, []string{"cohort too small"}, res.Warnings)
	assert.Equal(t, []string{"structure unavailable"}, res.Errors)
}

func TestStructureCollector(t *testing.T) {
	a := &fakeAdapter{structures: single("Anamnese"), answers: map[model.ID]model.Answers{}}
	a.structures["1"].Groups = append(a.structures["1"].Groups, &model.Group{Name: "Befund"})
	e := newTestEngine(a)

	tabs, err := (&StructureCollector{Engine: e}).CollectTabs(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, []model.TabDefinition{
		{Name: "Anamnese", Title: "Anamnese", Template: TemplateQuestions},
		{Name: "Befund", Title: "Befund", Template: TemplateQuestions},
	}, tabs)

	tree, err := model.ParseTabTree([]byte(`
history:
  source: [Vorgeschichte, Anamnese]
imaging:
  source: Bildgebung
`))
	require.NoError(t, err)
	tabs, err = (&StructureCollector{Engine: e, Tree: tree}).CollectTabs(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, []model.TabDefinition{{Name: "history", Title: "Anamnese", Template: TemplateQuestions}}, tabs)

	_, err = (&StructureCollector{Engine: e}).CollectTabs(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNoStructure)
}

func TestTemplateCollector(t *testing.T) {
	client := upstream(t, "medforge", respond(`["anamnesis", "labor"]`))
	c, err := NewTemplateCollector(client, resource.NewStaticCache(cache.NewMemoryStore()), []appconfig.TemplateTab{
		{Name: "overview"},
		{Name: "anamnesis", Title: "Anamnese", Template: "form", When: `"anamnesis" in forms`},
		{Name: "imaging", When: `"imaging" in forms`},
		{Name: "any", When: `len(forms) > 1`},
	})
	require.NoError(t, err)

	tabs, err := c.CollectTabs(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, []model.TabDefinition{
		{Name: "overview", Title: "overview", Template: TemplateQuestions},
		{Name: "anamnesis", Title: "Anamnese", Template: "form"},
		{Name: "any", Title: "any", Template: TemplateQuestions},
	}, tabs)

	_, err = NewTemplateCollector(client, nil, []appconfig.TemplateTab{{Name: "broken", When: `forms +`}})
	assert.Error(t, err)
}
