package llm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Enrichment field names requested from the storyteller.
const (
	KeyConsequences      = "consequences"
	KeyConnections       = "connections"
	KeyHiddenDetails     = "hidden_details"
	KeyPlotHooks         = "plot_hooks"
	KeyVisualDescription = "visual_description"
)

// Enrichment is the result of asking the storyteller about an event. It is
// either empty or a set of named text fields; the zero value is empty.
type Enrichment struct {
	fields map[string]string
}

// Fields builds an enrichment from text fields. A nil or empty map gives an
// empty enrichment.
func Fields(m map[string]string) Enrichment {
	if len(m) == 0 {
		return Enrichment{}
	}
	fields := make(map[string]string, len(m))
	for k, v := range m {
		fields[k] = v
	}
	return Enrichment{fields: fields}
}

// IsEmpty reports whether no fields are present.
func (e Enrichment) IsEmpty() bool {
	return len(e.fields) == 0
}

// Has reports whether key is present, even with empty text.
func (e Enrichment) Has(key string) bool {
	_, ok := e.fields[key]
	return ok
}

// Get returns the text for key, or "".
func (e Enrichment) Get(key string) string {
	return e.fields[key]
}

// Keys lists the present field names in sorted order.
func (e Enrichment) Keys() []string {
	keys := make([]string, 0, len(e.fields))
	for k := range e.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CoerceEnrichment turns whatever the model replied into an Enrichment.
// Accepted shapes: a JSON object; an array of objects (merged, earlier
// values win); an array of [key, value] pairs; any of those embedded in
// surrounding prose. Anything else is empty.
func CoerceEnrichment(raw string) Enrichment {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Enrichment{}
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		start := strings.IndexAny(raw, "{[")
		end := strings.LastIndexAny(raw, "}]")
		if start == -1 || end <= start {
			return Enrichment{}
		}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &v); err != nil {
			return Enrichment{}
		}
	}

	fields := make(map[string]string)
	collect(v, fields)
	return Fields(fields)
}

func collect(v any, into map[string]string) {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if _, seen := into[k]; seen {
				continue
			}
			into[k] = asText(val)
		}
	case []any:
		for _, elem := range t {
			switch e := elem.(type) {
			case map[string]any:
				collect(e, into)
			case []any:
				if len(e) != 2 {
					continue
				}
				k, ok := e[0].(string)
				if !ok {
					continue
				}
				if _, seen := into[k]; !seen {
					into[k] = asText(e[1])
				}
			}
		}
	}
}

// asText renders a JSON value as plain text. Null becomes "" so the key
// still counts as present. Lists of strings become one item per line; other
// non-string values are re-encoded as JSON.
func asText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		items := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return encode(v)
			}
			items = append(items, s)
		}
		return strings.Join(items, "\n")
	case float64:
		return fmt.Sprint(t)
	case bool:
		return fmt.Sprint(t)
	default:
		return encode(v)
	}
}

func encode(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
