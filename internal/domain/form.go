package domain

import (
	"net/url"
	"strconv"
)

const AcceptActionValue = "accept"

// FormValue is a hidden form input value. Inputs whose markup value is
// "true" or "false" are carried as booleans.
type FormValue struct {
	Text   string
	Bool   bool
	IsBool bool
}

func TextValue(text string) FormValue {
	return FormValue{Text: text}
}

func BoolValue(value bool) FormValue {
	return FormValue{Bool: value, IsBool: true}
}

func (v FormValue) String() string {
	if v.IsBool {
		return strconv.FormatBool(v.Bool)
	}
	return v.Text
}

// HiddenFields is the form payload scraped from the listing page. Order of
// first insertion is kept so the re-posted form matches the page.
type HiddenFields struct {
	order  []string
	values map[string]FormValue
}

func NewHiddenFields() HiddenFields {
	return HiddenFields{values: map[string]FormValue{}}
}

func (f *HiddenFields) Set(name string, value FormValue) {
	if f.values == nil {
		f.values = map[string]FormValue{}
	}
	if _, ok := f.values[name]; !ok {
		f.order = append(f.order, name)
	}
	f.values[name] = value
}

func (f HiddenFields) Get(name string) (FormValue, bool) {
	value, ok := f.values[name]
	return value, ok
}

func (f HiddenFields) Len() int {
	return len(f.order)
}

func (f HiddenFields) Names() []string {
	names := make([]string, len(f.order))
	copy(names, f.order)
	return names
}

// Clone returns an independent copy so a cycle can add action tokens
// without touching the extracted listing.
func (f HiddenFields) Clone() HiddenFields {
	clone := HiddenFields{
		order:  make([]string, len(f.order)),
		values: make(map[string]FormValue, len(f.values)),
	}
	copy(clone.order, f.order)
	for name, value := range f.values {
		clone.values[name] = value
	}
	return clone
}

func (f HiddenFields) Encode() url.Values {
	values := url.Values{}
	for _, name := range f.order {
		values.Set(name, f.values[name].String())
	}
	return values
}
