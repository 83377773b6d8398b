// pkg/core/instance.go
package core

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Instance is one marker placement as returned by the backend: [lat, lon, state?].
type Instance struct {
	Lat   float64
	Lon   float64
	State *State
}

// State holds the optional rich data attached to a placement.
type State struct {
	UID     string         `json:"uid,omitempty" yaml:"uid,omitempty"`
	Label   string         `json:"label,omitempty" yaml:"label,omitempty"`
	Desc    MultilineText  `json:"desc,omitempty" yaml:"desc,omitempty"`
	Image   string         `json:"image,omitempty" yaml:"image,omitempty"`
	Article string         `json:"article,omitempty" yaml:"article,omitempty"`
	Search  SearchKeywords `json:"search" yaml:"-"`
}

// Point returns the data-space position of the placement.
func (i Instance) Point() Point {
	return Point{Lat: i.Lat, Lon: i.Lon}
}

// UnmarshalJSON decodes a 2 or 3 element tuple. A missing or null state becomes
// an empty State so downstream code never has to nil-check it.
func (i *Instance) UnmarshalJSON(data []byte) error {
	var scratch []json.RawMessage
	decoded, err := DecodeInstance(data, &scratch)
	if err != nil {
		return err
	}
	*i = decoded
	return nil
}

// MarshalJSON encodes the placement back into its tuple form.
func (i Instance) MarshalJSON() ([]byte, error) {
	if i.State == nil {
		return json.Marshal([]any{i.Lat, i.Lon})
	}
	return json.Marshal([]any{i.Lat, i.Lon, i.State})
}

// DecodeInstance decodes a raw tuple using scratch as the intermediate element
// buffer. Callers on hot paths pass a reused buffer; it is truncated, not freed.
func DecodeInstance(data []byte, scratch *[]json.RawMessage) (Instance, error) {
	parts := (*scratch)[:0]
	if err := json.Unmarshal(data, &parts); err != nil {
		return Instance{}, fmt.Errorf("marker tuple: %w", err)
	}
	*scratch = parts
	if len(parts) < 2 || len(parts) > 3 {
		return Instance{}, fmt.Errorf("marker tuple: expected 2 or 3 elements, got %d", len(parts))
	}

	var inst Instance
	if err := json.Unmarshal(parts[0], &inst.Lat); err != nil {
		return Instance{}, fmt.Errorf("marker tuple latitude: %w", err)
	}
	if err := json.Unmarshal(parts[1], &inst.Lon); err != nil {
		return Instance{}, fmt.Errorf("marker tuple longitude: %w", err)
	}
	inst.State = &State{}
	if len(parts) == 3 && !isNull(parts[2]) {
		if err := json.Unmarshal(parts[2], inst.State); err != nil {
			return Instance{}, fmt.Errorf("marker tuple state: %w", err)
		}
	}
	return inst, nil
}

func isNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// MultilineText is a string that may be authored as a list of lines.
type MultilineText string

// UnmarshalJSON accepts a string or an array of strings joined with newlines.
func (t *MultilineText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = MultilineText(s)
		return nil
	}
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return fmt.Errorf("text: %w", err)
	}
	*t = MultilineText(strings.Join(lines, "\n"))
	return nil
}

// Keyword is a search phrase with its relevance weight.
type Keyword struct {
	Text   string
	Weight float64
}

// SearchKeywords is the `search` slot of a marker state.
// OptOut is set when the slot is explicitly 0 or false.
type SearchKeywords struct {
	Keywords []Keyword
	OptOut   bool
}

// Provided reports whether explicit keywords were supplied.
func (k SearchKeywords) Provided() bool {
	return len(k.Keywords) > 0
}

// UnmarshalJSON accepts a string, an array of strings or [string, weight] pairs,
// or 0/false as an opt-out.
func (k *SearchKeywords) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch string(trimmed) {
	case "null":
		*k = SearchKeywords{}
		return nil
	case "0", "false":
		*k = SearchKeywords{OptOut: true}
		return nil
	}

	var single string
	if err := json.Unmarshal(trimmed, &single); err == nil {
		*k = SearchKeywords{Keywords: []Keyword{{Text: single, Weight: 1}}}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return fmt.Errorf("search keywords: %w", err)
	}
	out := SearchKeywords{Keywords: make([]Keyword, 0, len(items))}
	for idx, item := range items {
		var text string
		if err := json.Unmarshal(item, &text); err == nil {
			out.Keywords = append(out.Keywords, Keyword{Text: text, Weight: 1})
			continue
		}
		var pair []json.RawMessage
		if err := json.Unmarshal(item, &pair); err != nil || len(pair) != 2 {
			return fmt.Errorf("search keyword %d: expected string or [string, weight]", idx)
		}
		kw := Keyword{}
		if err := json.Unmarshal(pair[0], &kw.Text); err != nil {
			return fmt.Errorf("search keyword %d text: %w", idx, err)
		}
		if err := json.Unmarshal(pair[1], &kw.Weight); err != nil {
			return fmt.Errorf("search keyword %d weight: %w", idx, err)
		}
		out.Keywords = append(out.Keywords, kw)
	}
	*k = out
	return nil
}

// MarshalJSON writes the pair form, 0 for opt-out, or null when absent.
func (k SearchKeywords) MarshalJSON() ([]byte, error) {
	if k.OptOut {
		return []byte("0"), nil
	}
	if len(k.Keywords) == 0 {
		return []byte("null"), nil
	}
	pairs := make([][2]any, len(k.Keywords))
	for i, kw := range k.Keywords {
		pairs[i] = [2]any{kw.Text, kw.Weight}
	}
	return json.Marshal(pairs)
}
