package route

import (
	"errors"
	"net/url"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestCompile_Matches(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
		params  map[string]string
	}{
		{name: "literal", pattern: "/about", path: "/about", want: true, params: map[string]string{}},
		{name: "literal is anchored", pattern: "/about", path: "/about/us", want: false},
		{name: "literal no prefix match", pattern: "/about", path: "/x/about", want: false},
		{name: "single placeholder", pattern: "/users/:id", path: "/users/42", want: true, params: map[string]string{"id": "42"}},
		{name: "placeholder stops at separator", pattern: "/users/:id", path: "/users/42/posts", want: false},
		{name: "percent decoded", pattern: "/tags/:tag", path: "/tags/hello%20world", want: true, params: map[string]string{"tag": "hello world"}},
		{name: "trailing slash optional", pattern: "/users/", path: "/users", want: true, params: map[string]string{}},
		{name: "trailing slash kept", pattern: "/users/", path: "/users/", want: true, params: map[string]string{}},
		{name: "optional part present", pattern: "/archive(/:year)", path: "/archive/2014", want: true, params: map[string]string{"year": "2014"}},
		{name: "optional part absent", pattern: "/archive(/:year)", path: "/archive", want: true, params: map[string]string{}},
		{name: "regex metachars are literal", pattern: "/feed.json", path: "/feedxjson", want: false},
		{name: "dot literal matches", pattern: "/feed.json", path: "/feed.json", want: true, params: map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.pattern)
			if err != nil {
				t.Fatalf("Compile(%q) error = %v", tt.pattern, err)
			}
			params, ok := p.Match(tt.path)
			if ok != tt.want {
				t.Fatalf("Match(%q) = %v, want %v (expr %s)", tt.path, ok, tt.want, p.Expr())
			}
			if !ok {
				return
			}
			got := make(map[string]string, len(params))
			for k := range params {
				got[k] = params.Get(k)
			}
			if !reflect.DeepEqual(got, tt.params) {
				t.Fatalf("params = %v, want %v", got, tt.params)
			}
		})
	}
}

func TestCompile_GreedyPlaceholder(t *testing.T) {
	p := MustCompile("/files/:rest+")

	if !p.Greedy("rest") {
		t.Fatal("expected rest to be greedy")
	}
	params, ok := p.Match("/files/a/b/c")
	if !ok {
		t.Fatal("expected greedy pattern to match")
	}
	if got := params.Segments("rest"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("Segments(rest) = %v, want [a b c]", got)
	}
	if got := params.Get("rest"); got != "a/b/c" {
		t.Fatalf("Get(rest) = %q, want a/b/c", got)
	}
}

func TestCompile_GreedySegmentsDecodedIndividually(t *testing.T) {
	p := MustCompile("/files/:rest+")
	params, ok := p.Match("/files/x%2Fy/z%20w")
	if !ok {
		t.Fatal("expected match")
	}
	if got := params.Segments("rest"); !reflect.DeepEqual(got, []string{"x/y", "z w"}) {
		t.Fatalf("Segments(rest) = %v", got)
	}
}

func TestCompile_NamesInDeclarationOrder(t *testing.T) {
	p := MustCompile("/orgs/:org/repos/:repo/tree/:path+")
	if got := p.Names(); !reflect.DeepEqual(got, []string{"org", "repo", "path"}) {
		t.Fatalf("Names() = %v", got)
	}
	if p.Greedy("org") || !p.Greedy("path") {
		t.Fatal("unexpected greedy flags")
	}
}

func TestCompile_Errors(t *testing.T) {
	for _, pattern := range []string{
		"/users/:id/friends/:id",
		"/a(/:b",
		"/a/:b)",
	} {
		_, err := Compile(pattern)
		var perr *PatternError
		if !errors.As(err, &perr) {
			t.Fatalf("Compile(%q) error = %v, want *PatternError", pattern, err)
		}
	}
}

func TestMustCompile_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	MustCompile("/:a/:a")
}

// Any path that substitutes separator-free values for ordinary placeholders
// matches, and exposes the decoded substitutions by name.
func TestProperty_OrdinaryPlaceholdersRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	genValue := gen.AnyString().SuchThat(func(s string) bool { return s != "" })

	properties.Property("substituted values are extracted and decoded", prop.ForAll(
		func(first, second string) bool {
			p := MustCompile("/users/:first/posts/:second")
			path := "/users/" + url.PathEscape(first) + "/posts/" + url.PathEscape(second)

			params, ok := p.Match(path)
			if !ok {
				return false
			}
			return params.Get("first") == first && params.Get("second") == second
		},
		genValue,
		genValue,
	))

	properties.Property("identifier values match without escaping", prop.ForAll(
		func(a, b string) bool {
			params, ok := MustCompile("/:a/x/:b").Match("/" + a + "/x/" + b)
			return ok && params.Get("a") == a && params.Get("b") == b
		},
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
