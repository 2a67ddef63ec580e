package model

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

const (
	ElementBasic                        = "basic"
	ElementMarker                       = "marker"
	ElementOpen                         = "open"
	ElementRanking                      = "ranking"
	ElementGroup                        = "group"
	ElementTab                          = "tab"
	ElementFrequencyDistribution        = "frequency-distribution"
	ElementGroupedFrequencyDistribution = "grouped-frequency-distribution"
	ElementFreeText                     = "free-text"
	ElementFreeTextCompare              = "free-text-compare"
)

// Element is one aggregated output unit. Which fields are set depends on Type.
type Element struct {
	Type  string `json:"type"`
	ID    ID     `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
	// Text is the static content of elements injected through label directives.
	Text string `json:"text,omitempty"`

	Attributes []*Attribute   `json:"attributes,omitempty"`
	Marks      []Mark         `json:"marks,omitempty"`
	Population *int           `json:"population,omitempty"`
	Answers    []TextAnswer   `json:"answers,omitempty"`
	Image      ID             `json:"image,omitempty"`
	Linked     ID             `json:"linked,omitempty"`
	Questions  []*Element     `json:"questions,omitempty"`
	Images     []*ImageVolume `json:"images,omitempty"`

	// Hierarchy is set on grouped frequency distributions computed by remote backends.
	Hierarchy any `json:"hierarchy,omitempty"`

	// Extra keeps the fields of a remote result this type does not model, so they reach the
	// client unchanged.
	Extra map[string]json.RawMessage `json:"-" msgpack:"extra,omitempty"`
}

var elementFields = map[string]struct{}{
	"type": {}, "id": {}, "title": {}, "text": {}, "attributes": {}, "marks": {}, "population": {},
	"answers": {}, "image": {}, "linked": {}, "questions": {}, "images": {}, "hierarchy": {},
}

type elementJSON Element

func (e *Element) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*elementJSON)(e)); err != nil {
		return err
	}
	e.Extra = nil
	gjson.ParseBytes(data).ForEach(func(key, value gjson.Result) bool {
		if _, known := elementFields[key.String()]; known {
			return true
		}
		if e.Extra == nil {
			e.Extra = map[string]json.RawMessage{}
		}
		e.Extra[key.String()] = json.RawMessage(value.Raw)
		return true
	})
	return nil
}

func (e Element) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal((*elementJSON)(&e))
	if err != nil || len(e.Extra) == 0 {
		return data, err
	}
	emitted := map[string]struct{}{}
	gjson.ParseBytes(data).ForEach(func(key, _ gjson.Result) bool {
		emitted[key.String()] = struct{}{}
		return true
	})
	keys := make([]string, 0, len(e.Extra))
	for k, v := range e.Extra {
		if _, ok := emitted[k]; !ok && len(v) > 0 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return data, nil
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Write(data[:len(data)-1])
	for _, k := range keys {
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(e.Extra[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type Attribute struct {
	Value        any          `json:"value"`
	Frequency    int          `json:"frequency"`
	IsCorrect    bool         `json:"isCorrect,omitempty"`
	IsAdditional bool         `json:"isAdditional,omitempty"`
	Ranks        []int        `json:"ranks,omitempty"`
	Children     []*Attribute `json:"children,omitempty"`
}

func (a *Attribute) ValueString() string {
	if a.Value == nil {
		return ""
	}
	if s, ok := a.Value.(string); ok {
		return s
	}
	return fmt.Sprint(a.Value)
}

// PruneNull removes attributes whose value equals sentinel and which have no children left,
// recursing into children first. Running it again on its result changes nothing.
func PruneNull(attrs []*Attribute, sentinel string) []*Attribute {
	if len(attrs) == 0 {
		return attrs
	}
	out := attrs[:0:0]
	for _, a := range attrs {
		if a == nil {
			continue
		}
		if len(a.Children) > 0 {
			a.Children = PruneNull(a.Children, sentinel)
			if len(a.Children) == 0 {
				a.Children = nil
			}
		}
		if len(a.Children) == 0 && a.ValueString() == sentinel {
			continue
		}
		out = append(out, a)
	}
	return out
}

// PruneGroupedDistributions applies PruneNull to every grouped frequency distribution in the
// element tree below e.
func (e *Element) PruneGroupedDistributions(sentinel string) {
	if e == nil {
		return
	}
	if e.Hierarchy != nil {
		e.Attributes = PruneNull(e.Attributes, sentinel)
	}
	for _, q := range e.Questions {
		q.PruneGroupedDistributions(sentinel)
	}
}

func IntPtr(i int) *int {
	return &i
}
