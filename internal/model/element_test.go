package model

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func groupedAttributes() []*Attribute {
	return []*Attribute{
		{Value: "Hb", Frequency: 3, Children: []*Attribute{
			{Value: "low", Frequency: 1},
			{Value: "null", Frequency: 2},
		}},
		{Value: "null", Frequency: 4, Children: []*Attribute{
			{Value: "null", Frequency: 4},
		}},
		{Value: "null", Frequency: 1, Children: []*Attribute{
			{Value: "high", Frequency: 1},
		}},
		{Value: "null", Frequency: 2},
		{Value: "CRP", Frequency: 1},
	}
}

func TestPruneNull(t *testing.T) {
	got := PruneNull(groupedAttributes(), "null")

	assert.Equal(t, []*Attribute{
		{Value: "Hb", Frequency: 3, Children: []*Attribute{
			{Value: "low", Frequency: 1},
		}},
		{Value: "null", Frequency: 1, Children: []*Attribute{
			{Value: "high", Frequency: 1},
		}},
		{Value: "CRP", Frequency: 1},
	}, got)
}

func TestPruneNullIsIdempotent(t *testing.T) {
	once := PruneNull(groupedAttributes(), "null")
	twice := PruneNull(PruneNull(groupedAttributes(), "null"), "null")

	assert.Equal(t, once, twice)
}

func TestPruneNullComparesNonStringValues(t *testing.T) {
	got := PruneNull([]*Attribute{{Value: float64(-1)}, {Value: float64(2)}}, "-1")
	assert.Equal(t, []*Attribute{{Value: float64(2)}}, got)
}

func TestPruneGroupedDistributions(t *testing.T) {
	tab := &Element{Type: ElementTab, Questions: []*Element{
		{Type: ElementGroupedFrequencyDistribution, Hierarchy: map[string]any{"a": []string{"x"}}, Attributes: groupedAttributes()},
		{Type: ElementFrequencyDistribution, Attributes: []*Attribute{{Value: "null", Frequency: 1}}},
	}}

	tab.PruneGroupedDistributions("null")

	assert.Len(t, tab.Questions[0].Attributes, 3)
	assert.Len(t, tab.Questions[1].Attributes, 1, "only grouped distributions are pruned")
}

func TestElementKeepsUnmodelledFields(t *testing.T) {
	var el Element
	require.NoError(t, json.Unmarshal([]byte(`{"type": "basic", "total": 4, "unit": {"de": "Jahre"}}`), &el))
	assert.Equal(t, "basic", el.Type)
	assert.Len(t, el.Extra, 2)

	el.Attributes = []*Attribute{{Value: "a", Frequency: 4}}
	out, err := json.Marshal(&el)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type": "basic", "attributes": [{"value": "a", "frequency": 4}], "total": 4, "unit": {"de": "Jahre"}}`, string(out))
}

func TestElementModelledFieldsWinOverExtra(t *testing.T) {
	el := &Element{Type: "open", Title: "Notes", Extra: map[string]json.RawMessage{
		"title":   json.RawMessage(`"ignored"`),
		"answers": json.RawMessage(`["stechend"]`),
	}}
	out, err := json.Marshal(el)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type": "open", "title": "Notes", "answers": ["stechend"]}`, string(out))
}
