// Package route compiles declarative path patterns and selects the first
// registered route matching a request path.
//
// A pattern is a literal path containing placeholders:
//
//	/users/:id            single segment, captured as one decoded string
//	/files/:rest+         greedy, captured as a list of decoded segments
//	/archive(/:year)      parenthesised portions are optional
//
// Patterns are compiled once, when the route table is built.
package route

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	segmentExpr = `[^/]+`
	greedyExpr  = `.+`
)

// PatternError reports a pattern that cannot be compiled.
// It is a configuration error: the route table should never be built with it.
type PatternError struct {
	Pattern string
	Reason  string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid route pattern %q: %s", e.Pattern, e.Reason)
}

// Pattern is a compiled route pattern.
type Pattern struct {
	raw    string
	expr   *regexp.Regexp
	names  []string
	greedy map[string]bool
}

// Compile converts a route pattern into an anchored matcher.
func Compile(pattern string) (*Pattern, error) {
	p := &Pattern{
		raw:    pattern,
		greedy: make(map[string]bool),
	}

	var b strings.Builder
	b.WriteString("^")

	depth := 0
	literal := strings.Builder{}
	flush := func() {
		if literal.Len() > 0 {
			b.WriteString(regexp.QuoteMeta(literal.String()))
			literal.Reset()
		}
	}

	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == ':' && i+1 < len(pattern) && isNameByte(pattern[i+1]):
			flush()
			j := i + 1
			for j < len(pattern) && isNameByte(pattern[j]) {
				j++
			}
			name := pattern[i+1 : j]
			greedy := j < len(pattern) && pattern[j] == '+'
			if greedy {
				j++
			}
			if err := p.addName(name, greedy); err != nil {
				return nil, err
			}
			expr := segmentExpr
			if greedy {
				expr = greedyExpr
			}
			fmt.Fprintf(&b, "(?P<%s>%s)", name, expr)
			i = j - 1
		case c == '(':
			flush()
			depth++
			b.WriteString("(?:")
		case c == ')':
			flush()
			if depth == 0 {
				return nil, &PatternError{Pattern: pattern, Reason: "unbalanced ')'"}
			}
			depth--
			b.WriteString(")?")
		default:
			literal.WriteByte(c)
		}
	}
	flush()

	if depth != 0 {
		return nil, &PatternError{Pattern: pattern, Reason: "unbalanced '('"}
	}
	if strings.HasSuffix(pattern, "/") {
		b.WriteString("?")
	}
	b.WriteString("$")

	expr, err := regexp.Compile(b.String())
	if err != nil {
		return nil, &PatternError{Pattern: pattern, Reason: err.Error()}
	}
	p.expr = expr
	return p, nil
}

// MustCompile is like Compile but panics on error. Intended for static tables.
func MustCompile(pattern string) *Pattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Pattern) addName(name string, greedy bool) error {
	for _, existing := range p.names {
		if existing == name {
			return &PatternError{Pattern: p.raw, Reason: fmt.Sprintf("duplicate placeholder %q", name)}
		}
	}
	p.names = append(p.names, name)
	if greedy {
		p.greedy[name] = true
	}
	return nil
}

// String returns the pattern as declared.
func (p *Pattern) String() string { return p.raw }

// Expr returns the compiled regular expression source.
func (p *Pattern) Expr() string { return p.expr.String() }

// Names returns the placeholder names in declaration order.
func (p *Pattern) Names() []string {
	return append([]string(nil), p.names...)
}

// Greedy reports whether the named placeholder spans multiple segments.
func (p *Pattern) Greedy(name string) bool { return p.greedy[name] }

// Match runs the matcher against a normalized path and returns decoded parameters.
func (p *Pattern) Match(path string) (Params, bool) {
	m := p.expr.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}

	params := make(Params, len(p.names))
	for i, group := range p.expr.SubexpNames() {
		if group == "" || m[i] == "" {
			continue
		}
		if p.greedy[group] {
			params[group] = greedyParam(m[i])
		} else {
			params[group] = Param{Value: decode(m[i])}
		}
	}
	return params, true
}

func isNameByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}
