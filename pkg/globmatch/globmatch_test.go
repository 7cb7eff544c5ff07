package globmatch

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCompile(t *testing.T, include, exclude []string) *IncludeExcludeGlobs {
	t.Helper()
	g, err := New(include, exclude)
	require.NoError(t, err)
	return g
}

func TestEmptyIncludeAllowsEverything(t *testing.T) {
	g := mustCompile(t, nil, nil)
	assert.Equal(t, Allowed, g.Decide("any/path.txt"))
}

func TestExcludeWinsOverInclude(t *testing.T) {
	g := mustCompile(t, []string{"**/*.go"}, []string{"**/vendor/**"})
	assert.Equal(t, DeniedByExclude, g.Decide("pkg/vendor/dep/file.go"))
	assert.Equal(t, Allowed, g.Decide("pkg/core/file.go"))
}

func TestMissingIncludeDenies(t *testing.T) {
	g := mustCompile(t, []string{"src/**"}, nil)
	assert.Equal(t, DeniedByMissingInclude, g.Decide("docs/readme.md"))
	assert.Equal(t, Allowed, g.Decide("src/main.go"))
}

func TestDoublestarSpansDirectories(t *testing.T) {
	g := mustCompile(t, []string{"**/*.rs"}, nil)
	assert.Equal(t, Allowed, g.Decide("a/b/c/lib.rs"))
	assert.Equal(t, Allowed, g.Decide("lib.rs"))
	assert.Equal(t, DeniedByMissingInclude, g.Decide("a/b/c/lib.go"))
}

func TestBraceExpansion(t *testing.T) {
	g := mustCompile(t, []string{"*.{go,rs,py}"}, nil)
	assert.Equal(t, Allowed, g.Decide("main.go"))
	assert.Equal(t, Allowed, g.Decide("main.rs"))
	assert.Equal(t, DeniedByMissingInclude, g.Decide("main.ts"))
}

func TestCharacterClass(t *testing.T) {
	g := mustCompile(t, []string{"file[abc].txt"}, nil)
	assert.Equal(t, Allowed, g.Decide("filea.txt"))
	assert.Equal(t, DeniedByMissingInclude, g.Decide("filed.txt"))
}

func TestCaseSensitive(t *testing.T) {
	g := mustCompile(t, []string{"README.md"}, nil)
	assert.Equal(t, Allowed, g.Decide("README.md"))
	assert.Equal(t, DeniedByMissingInclude, g.Decide("readme.md"))
}

func TestBangIsNotNegation(t *testing.T) {
	g := mustCompile(t, []string{"!important.txt"}, nil)
	assert.Equal(t, Allowed, g.Decide("!important.txt"))
	assert.Equal(t, DeniedByMissingInclude, g.Decide("important.txt"))
}

func TestBackslashNormalization(t *testing.T) {
	g := mustCompile(t, []string{"src/**/*.go"}, nil)
	assert.Equal(t, Allowed, g.Decide(`src\nested\main.go`))
}

func TestInvalidPatternFailsAtCompile(t *testing.T) {
	_, err := New([]string{"["}, nil)
	require.Error(t, err)
	var bad *ErrBadPattern
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, "[", bad.Pattern)

	_, err = New(nil, []string{"["})
	assert.Error(t, err)
}

func TestDotSegmentsAreLiteral(t *testing.T) {
	g := mustCompile(t, []string{"./src/*.go"}, nil)
	assert.Equal(t, Allowed, g.Decide("./src/main.go"))
	assert.Equal(t, DeniedByMissingInclude, g.Decide("src/main.go"))
}

func TestPrecedenceProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	// Any path matching both lists is denied by exclude.
	properties.Property("exclude wins when both match", prop.ForAll(
		func(name string) bool {
			if name == "" {
				return true
			}
			g, err := New([]string{"**"}, []string{"**"})
			if err != nil {
				return false
			}
			return g.Decide(name) == DeniedByExclude
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
