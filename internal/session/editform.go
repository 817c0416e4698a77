package session

import (
	"sort"
	"strings"
	"unicode"

	"github.com/mattn/go-runewidth"
)

// FormatPlaceholderName turns a raw key into a label: underscores become
// spaces and each word starts upper-case ("full_name" -> "Full Name").
// Non-ASCII letters count as word characters ("émile" -> "Émile").
func FormatPlaceholderName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	atWordStart := true
	for _, r := range strings.ReplaceAll(name, "_", " ") {
		isWord := unicode.IsLetter(r) || unicode.IsDigit(r)
		if isWord && atWordStart {
			r = unicode.ToUpper(r)
		}
		atWordStart = !isWord
		b.WriteRune(r)
	}
	return b.String()
}

// EditField is one labelled input. Key is the untransformed placeholder name.
type EditField struct {
	Key   string
	Label string
	Value string
}

// EditForm mirrors the edit dialog: one field per collected value, in key
// order.
type EditForm struct {
	Fields []EditField
}

func NewEditForm(values map[string]string) EditForm {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	form := EditForm{Fields: make([]EditField, 0, len(keys))}
	for _, k := range keys {
		form.Fields = append(form.Fields, EditField{
			Key:   k,
			Label: FormatPlaceholderName(k),
			Value: values[k],
		})
	}
	return form
}

// Set updates the field tagged with key. Unknown keys are ignored.
func (f *EditForm) Set(key, value string) bool {
	for i := range f.Fields {
		if f.Fields[i].Key == key {
			f.Fields[i].Value = value
			return true
		}
	}
	return false
}

// Values is the update request body: trimmed values keyed by original key.
func (f EditForm) Values() map[string]string {
	out := make(map[string]string, len(f.Fields))
	for _, field := range f.Fields {
		out[field.Key] = strings.TrimSpace(field.Value)
	}
	return out
}

// LabelWidth is the widest label in display columns, for aligning inputs.
func (f EditForm) LabelWidth() int {
	w := 0
	for _, field := range f.Fields {
		if n := runewidth.StringWidth(field.Label); n > w {
			w = n
		}
	}
	return w
}
