package model

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTree = `
anamnesis:
  history:
    source: history_field
    type: frequency-distribution
  flags:
    source: [smoker, diabetic]
    type: frequency-distribution
    sourceType: boolean
findings:
  imaging:
    ct:
      source: ct_findings
      type: free-text
  lab:
    source: lab
    type: grouped-frequency-distribution
    hierarchy:
      parameter: [a_name, b_name]
      value: [a_value, b_value]
empty: {}
`

func TestParseTabTree(t *testing.T) {
	root, err := ParseTabTree([]byte(sampleTree))
	require.NoError(t, err)

	require.Len(t, root.Children, 3)
	assert.Equal(t, []string{"anamnesis", "findings", "empty"}, []string{
		root.Children[0].Key, root.Children[1].Key, root.Children[2].Key,
	})
	assert.False(t, root.Children[0].IsLeaf())
	assert.Empty(t, root.Children[2].Children)

	elements := root.Flatten()
	assert.Equal(t, []string{"history", "flags", "ct", "lab"}, elements.Keys())

	flags := elements[1].Spec
	assert.Equal(t, []string{"smoker", "diabetic"}, flags.Source)
	assert.Equal(t, SourceTypeBoolean, flags.SourceType)

	lab := elements[3].Spec
	require.Len(t, lab.Hierarchy, 2)
	assert.Equal(t, "parameter", lab.Hierarchy[0].Name)
	assert.Equal(t, []string{"a_value", "b_value"}, lab.Hierarchy[1].Sources)
}

func TestParseTabTreeRejectsDuplicateLeafKeys(t *testing.T) {
	_, err := ParseTabTree([]byte(`
a:
  x: {source: one, type: basic}
b:
  x: {source: two, type: basic}
`))
	assert.ErrorIs(t, err, ErrInvalidTabTree)
}

func TestParseTabTreeRejectsMisalignedHierarchy(t *testing.T) {
	_, err := ParseTabTree([]byte(`
lab:
  source: lab
  type: grouped-frequency-distribution
  hierarchy:
    parameter: [a, b]
    value: [c]
`))
	assert.ErrorIs(t, err, ErrInvalidTabTree)
}

func TestElementsMarshalKeepsOrder(t *testing.T) {
	root, err := ParseTabTree([]byte(sampleTree))
	require.NoError(t, err)

	b, err := json.Marshal(root.Flatten())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"history": {"source": "history_field", "type": "frequency-distribution"},
		"flags": {"source": ["smoker", "diabetic"], "type": "frequency-distribution", "sourceType": "boolean"},
		"ct": {"source": "ct_findings", "type": "free-text"},
		"lab": {"source": "lab", "type": "grouped-frequency-distribution",
			"hierarchy": {"parameter": ["a_name", "b_name"], "value": ["a_value", "b_value"]}}
	}`, string(b))
	assert.Less(t, strings.Index(string(b), `"history"`), strings.Index(string(b), `"lab"`))
}

func TestPopulateRoundTrip(t *testing.T) {
	root, err := ParseTabTree([]byte(sampleTree))
	require.NoError(t, err)

	results := map[string]*Element{}
	for _, key := range root.Flatten().Keys() {
		results[key] = &Element{Type: ElementBasic, Title: key}
	}

	var missing []string
	populated := root.Populate(results, func(key string) { missing = append(missing, key) })
	assert.Empty(t, missing)
	assert.Empty(t, results)

	b, err := json.Marshal(populated)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"anamnesis": {
			"history": {"type": "basic", "title": "history"},
			"flags": {"type": "basic", "title": "flags"}
		},
		"findings": {
			"imaging": {"ct": {"type": "basic", "title": "ct"}},
			"lab": {"type": "basic", "title": "lab"}
		},
		"empty": {}
	}`, string(b))

	var keys []string
	populated.Walk(func(key string, e *Element) {
		assert.Equal(t, key, e.Title)
		keys = append(keys, key)
	})
	assert.Equal(t, root.Flatten().Keys(), keys)
}

func TestPopulateMissingLeafIsNull(t *testing.T) {
	root, err := ParseTabTree([]byte(`
tab:
  a: {source: a, type: basic}
  b: {source: b, type: basic}
`))
	require.NoError(t, err)

	var missing []string
	populated := root.Populate(map[string]*Element{"a": {Type: ElementBasic}}, func(key string) {
		missing = append(missing, key)
	})
	assert.Equal(t, []string{"b"}, missing)

	b, err := json.Marshal(populated)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tab": {"a": {"type": "basic"}, "b": null}}`, string(b))
}

func TestParseEmptyTree(t *testing.T) {
	root, err := ParseTabTree([]byte(``))
	require.NoError(t, err)
	assert.Empty(t, root.Flatten())

	b, err := json.Marshal(root.Populate(map[string]*Element{}, nil))
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(b))
}
