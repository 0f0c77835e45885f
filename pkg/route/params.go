package route

import (
	"net/url"
	"sort"
	"strings"
)

// Param is one extracted placeholder value.
// Greedy placeholders carry the decoded path segments; Value then holds them
// joined back with "/".
type Param struct {
	Value    string
	Segments []string
	Greedy   bool
}

// Params maps placeholder names to their extracted values.
type Params map[string]Param

// Get returns the decoded value of a placeholder, or "" when absent.
func (p Params) Get(name string) string {
	return p[name].Value
}

// Segments returns the decoded segments of a greedy placeholder.
// For an ordinary placeholder it returns a one-element slice.
func (p Params) Segments(name string) []string {
	v, ok := p[name]
	if !ok {
		return nil
	}
	if v.Greedy {
		return append([]string(nil), v.Segments...)
	}
	return []string{v.Value}
}

// Has reports whether the placeholder matched.
func (p Params) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// Names returns the matched placeholder names, sorted.
func (p Params) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Values flattens the params into url.Values, one entry per greedy segment.
func (p Params) Values() url.Values {
	out := make(url.Values, len(p))
	for name, v := range p {
		if v.Greedy {
			out[name] = append([]string(nil), v.Segments...)
			continue
		}
		out.Set(name, v.Value)
	}
	return out
}

func greedyParam(raw string) Param {
	parts := strings.Split(raw, "/")
	segments := make([]string, len(parts))
	for i, part := range parts {
		segments[i] = decode(part)
	}
	return Param{
		Value:    strings.Join(segments, "/"),
		Segments: segments,
		Greedy:   true,
	}
}

func decode(raw string) string {
	v, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return v
}
