package message

import "strings"

type headerEntry struct {
	name   string
	values []string
}

// Headers is a case-insensitive header mapping that remembers insertion
// order. The first spelling of a name is the one reported by Names and Each.
// A nil *Headers behaves as an empty mapping for reads.
type Headers struct {
	entries []headerEntry
	index   map[string]int
}

// NewHeaders returns an empty mapping.
func NewHeaders() *Headers {
	return &Headers{index: make(map[string]int)}
}

func (h *Headers) lookup(name string) (int, bool) {
	if h == nil || h.index == nil {
		return 0, false
	}
	i, ok := h.index[strings.ToLower(name)]
	return i, ok
}

// Set replaces all values stored under name. An existing entry keeps its position.
func (h *Headers) Set(name string, values ...string) {
	vals := append([]string(nil), values...)
	if i, ok := h.lookup(name); ok {
		h.entries[i].values = vals
		return
	}
	if h.index == nil {
		h.index = make(map[string]int)
	}
	h.index[strings.ToLower(name)] = len(h.entries)
	h.entries = append(h.entries, headerEntry{name: name, values: vals})
}

// Add appends values to name, creating the entry if needed.
func (h *Headers) Add(name string, values ...string) {
	if i, ok := h.lookup(name); ok {
		h.entries[i].values = append(h.entries[i].values, values...)
		return
	}
	h.Set(name, values...)
}

// Get returns the first value of name or "".
func (h *Headers) Get(name string) string {
	if i, ok := h.lookup(name); ok && len(h.entries[i].values) > 0 {
		return h.entries[i].values[0]
	}
	return ""
}

// Values returns a copy of the values of name.
func (h *Headers) Values(name string) []string {
	if i, ok := h.lookup(name); ok {
		return append([]string(nil), h.entries[i].values...)
	}
	return nil
}

// Has reports whether name is present.
func (h *Headers) Has(name string) bool {
	_, ok := h.lookup(name)
	return ok
}

// Del removes name.
func (h *Headers) Del(name string) {
	i, ok := h.lookup(name)
	if !ok {
		return
	}
	h.entries = append(h.entries[:i], h.entries[i+1:]...)
	h.index = make(map[string]int, len(h.entries))
	for j, e := range h.entries {
		h.index[strings.ToLower(e.name)] = j
	}
}

// Len returns the number of distinct names.
func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.entries)
}

// Names returns the header names in insertion order.
func (h *Headers) Names() []string {
	if h == nil {
		return nil
	}
	out := make([]string, 0, len(h.entries))
	for _, e := range h.entries {
		out = append(out, e.name)
	}
	return out
}

// Each calls fn for every name in insertion order. fn must not modify h.
func (h *Headers) Each(fn func(name string, values []string)) {
	if h == nil {
		return
	}
	for _, e := range h.entries {
		fn(e.name, e.values)
	}
}

// Clone returns a deep copy.
func (h *Headers) Clone() *Headers {
	out := NewHeaders()
	h.Each(func(name string, values []string) {
		out.Set(name, values...)
	})
	return out
}

// Map returns the mapping as a plain map keyed by the stored names.
func (h *Headers) Map() map[string][]string {
	out := make(map[string][]string, h.Len())
	h.Each(func(name string, values []string) {
		out[name] = append([]string(nil), values...)
	})
	return out
}
