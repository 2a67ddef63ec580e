package model

import (
	"strconv"

	"github.com/tidwall/gjson"
)

// ID is an upstream identifier. Modules send ids as JSON numbers or strings; both decode
// to the same textual form.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	r := gjson.ParseBytes(b)
	switch r.Type {
	case gjson.Null:
		*id = ""
	case gjson.String:
		*id = ID(r.Str)
	default:
		*id = ID(r.Raw)
	}
	return nil
}

func (id ID) String() string {
	return string(id)
}

func IntID(i int) ID {
	return ID(strconv.Itoa(i))
}

// Indices is a list of chosen answer indices. Older datasets deliver them as a comma joined
// string, newer ones as a JSON list of numbers or numeric strings. Entries that are not
// integers are skipped.
type Indices []int

func (x *Indices) UnmarshalJSON(b []byte) error {
	*x = ParseIndices(gjson.ParseBytes(b))
	return nil
}

func ParseIndices(r gjson.Result) Indices {
	var out Indices
	switch {
	case r.IsArray():
		r.ForEach(func(_, v gjson.Result) bool {
			if i, ok := parseIndex(v); ok {
				out = append(out, i)
			}
			return true
		})
	case r.Type == gjson.String:
		for _, part := range splitCSV(r.Str) {
			if i, err := strconv.Atoi(part); err == nil {
				out = append(out, i)
			}
		}
	case r.Type == gjson.Number:
		out = append(out, int(r.Int()))
	}
	return out
}

func parseIndex(v gjson.Result) (int, bool) {
	switch v.Type {
	case gjson.Number:
		return int(v.Int()), true
	case gjson.String:
		i, err := strconv.Atoi(v.Str)
		return i, err == nil
	}
	return 0, false
}
