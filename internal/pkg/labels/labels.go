// Package labels parses the directives modules encode into question and subquestion labels,
// e.g. "$_PRISMA-Subq1Title:Left lung" or "$_PRISMA-Pre:text|Look at the image first".
package labels

import (
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/guregu/null.v3"
)

const Prefix = "$_PRISMA-"

var (
	// an empty index scopes the directive to the subquestion carrying the label, e.g. "SubqLink:0"
	subqDirective = regexp.MustCompile(`^Subq(\d*)(Titel|Title|Link|Pre):(.*)$`)
	directive     = regexp.MustCompile(`^(Titel|Title|Link|Pre):(.*)$`)
)

type PreElement struct {
	Type  string
	Value string
}

type Directives struct {
	Title null.String
	// Link is the index of a sibling subquestion this one refers to.
	Link         null.Int
	Pre          []PreElement
	Subquestions map[int]*Directives
}

// Parse reads every directive from labels. Labels without the directive prefix and malformed
// directives are ignored.
func Parse(labels []string) *Directives {
	d := &Directives{}
	for _, label := range labels {
		body, ok := strings.CutPrefix(strings.TrimSpace(label), Prefix)
		if !ok {
			continue
		}
		if m := subqDirective.FindStringSubmatch(body); m != nil {
			if m[1] == "" {
				d.apply(m[2], m[3])
				continue
			}
			i, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			d.subquestion(i).apply(m[2], m[3])
			continue
		}
		if m := directive.FindStringSubmatch(body); m != nil {
			d.apply(m[1], m[2])
		}
	}
	return d
}

func (d *Directives) apply(kind, value string) {
	switch kind {
	case "Titel", "Title":
		d.Title = null.StringFrom(strings.TrimSpace(value))
	case "Link":
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && i >= 0 {
			d.Link = null.IntFrom(int64(i))
		}
	case "Pre":
		typ, text, ok := strings.Cut(value, "|")
		if !ok || strings.TrimSpace(typ) == "" {
			return
		}
		d.Pre = append(d.Pre, PreElement{Type: strings.TrimSpace(typ), Value: text})
	}
}

func (d *Directives) subquestion(i int) *Directives {
	if d.Subquestions == nil {
		d.Subquestions = map[int]*Directives{}
	}
	s, ok := d.Subquestions[i]
	if !ok {
		s = &Directives{}
		d.Subquestions[i] = s
	}
	return s
}

// Subquestion returns the directives scoped to the i-th subquestion. It never returns nil.
func (d *Directives) Subquestion(i int) *Directives {
	if d == nil {
		return &Directives{}
	}
	if s, ok := d.Subquestions[i]; ok {
		return s
	}
	return &Directives{}
}

// With returns the directives of d overridden by those set in o.
func (d *Directives) With(o *Directives) *Directives {
	out := &Directives{}
	if d != nil {
		*out = *d
		out.Pre = append([]PreElement(nil), d.Pre...)
	}
	if o == nil {
		return out
	}
	if o.Title.Valid {
		out.Title = o.Title
	}
	if o.Link.Valid {
		out.Link = o.Link
	}
	out.Pre = append(out.Pre, o.Pre...)
	return out
}

func (d *Directives) HasTitle() bool {
	return d != nil && d.Title.Valid && d.Title.String != ""
}
