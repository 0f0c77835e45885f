package route

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"
)

// Entry is one route declaration. Name is optional and only used for URL generation.
type Entry struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"route"`
	Handler string `yaml:"controller"`
}

// Match is the result of a successful selection.
type Match struct {
	Name    string
	Pattern string
	Handler string
	Params  Params
}

type compiledEntry struct {
	Entry
	pattern *Pattern
}

// Table is an ordered, immutable route table. The first matching entry wins.
type Table struct {
	entries []compiledEntry
	byName  map[string]int
}

// NewTable compiles every entry in order. Any invalid pattern or duplicated
// route name fails the whole table.
func NewTable(entries ...Entry) (*Table, error) {
	t := &Table{
		entries: make([]compiledEntry, 0, len(entries)),
		byName:  make(map[string]int),
	}
	for i, e := range entries {
		if strings.TrimSpace(e.Handler) == "" {
			return nil, fmt.Errorf("route %d (%s): handler is required", i, e.Pattern)
		}
		p, err := Compile(e.Pattern)
		if err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}
		if e.Name != "" {
			if _, exists := t.byName[e.Name]; exists {
				return nil, fmt.Errorf("route %d: duplicate route name %q", i, e.Name)
			}
			t.byName[e.Name] = i
		}
		t.entries = append(t.entries, compiledEntry{Entry: e, pattern: p})
	}
	return t, nil
}

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.entries) }

// Entries returns the declarations in registration order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Entry
	}
	return out
}

// Pattern returns the compiled pattern of the i-th entry.
func (t *Table) Pattern(i int) *Pattern { return t.entries[i].pattern }

// Select returns the first entry matching the normalized path.
func (t *Table) Select(path string) (*Match, bool) {
	for _, e := range t.entries {
		params, ok := e.pattern.Match(path)
		if !ok {
			continue
		}
		return &Match{
			Name:    e.Name,
			Pattern: e.Pattern,
			Handler: e.Handler,
			Params:  params,
		}, true
	}
	return nil, false
}

var placeholderRef = regexp.MustCompile(`\(?/:\w+\+?\)?`)

// URL builds the path of a named route. Mandatory placeholders must be
// supplied; optional "(/:name)" parts are dropped when missing. Params that do
// not name a placeholder are appended as the query string.
func (t *Table) URL(name string, params map[string]string) (string, error) {
	i, ok := t.byName[name]
	if !ok {
		return "", fmt.Errorf("unknown route %q", name)
	}
	pattern := t.entries[i].Pattern
	used := make(map[string]bool)

	var missing string
	built := placeholderRef.ReplaceAllStringFunc(pattern, func(ref string) string {
		optional := strings.HasPrefix(ref, "(")
		param := strings.Trim(ref, "()/:+")
		used[param] = true
		value, ok := params[param]
		switch {
		case ok && value != "":
			return "/" + escapeValue(value, strings.HasSuffix(strings.TrimSuffix(ref, ")"), "+"))
		case optional:
			return ""
		default:
			if missing == "" {
				missing = param
			}
			return ref
		}
	})
	if missing != "" {
		return "", fmt.Errorf("route %q: %s is a mandatory parameter", name, missing)
	}

	extra := make([]string, 0)
	for k := range params {
		if !used[k] {
			extra = append(extra, k)
		}
	}
	if len(extra) == 0 {
		return built, nil
	}
	sort.Strings(extra)
	q := url.Values{}
	for _, k := range extra {
		q.Set(k, params[k])
	}
	return built + "?" + q.Encode(), nil
}

func escapeValue(v string, greedy bool) string {
	if !greedy {
		return url.PathEscape(v)
	}
	parts := strings.Split(v, "/")
	for i := range parts {
		parts[i] = url.PathEscape(parts[i])
	}
	return strings.Join(parts, "/")
}

// NormalizePath derives the routable path from the raw request URI: the query
// string is removed, the script root is stripped when the application is
// mounted below a sub-path and a leading "/" is enforced.
//
// scriptName is the mount point of the front script (for example
// "/app/index.php" or "/api"); when the request URI does not start with it,
// its directory is stripped instead, which covers URL rewriting setups.
func NormalizePath(requestURI, scriptName string) string {
	p := requestURI
	if idx := strings.IndexByte(p, '?'); idx >= 0 {
		p = p[:idx]
	}

	if scriptName != "" {
		root := strings.TrimRight(scriptName, "/")
		if !underRoot(p, root) {
			root = strings.TrimRight(path.Dir(scriptName), "/")
		}
		if root != "" && underRoot(p, root) {
			p = p[len(root):]
		}
	}

	return "/" + strings.TrimLeft(p, "/")
}

// underRoot reports whether p is root itself or a path below it, so that
// "/api" never strips the start of "/apiary".
func underRoot(p, root string) bool {
	return p == root || strings.HasPrefix(p, root+"/")
}
