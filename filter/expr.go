package filter

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/kyubik/qbitbot/qbittorrent"
)

// exprFilter implements CompiledFilter using the expr language
type exprFilter struct {
	expression string
	program    *vm.Program
	helpers    map[string]any
}

// ExprCompilerOption configures an expr compiler
type ExprCompilerOption func(*exprCompiler)

// WithCache enables filter caching with the specified size
func WithCache(size int) ExprCompilerOption {
	return func(c *exprCompiler) {
		if size > 0 {
			c.cache = newFilterCache(size)
		}
	}
}

// WithCustomFunctions adds custom helper functions
func WithCustomFunctions(funcs map[string]any) ExprCompilerOption {
	return func(c *exprCompiler) {
		maps.Copy(c.helperFuncs, funcs)
	}
}

// NewExprCompiler creates a new expr-based filter compiler
func NewExprCompiler(opts ...ExprCompilerOption) CachingCompiler {
	c := &exprCompiler{
		helperFuncs: createHelperFunctions(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type exprCompiler struct {
	helperFuncs map[string]any
	cache       *filterCache
}

// Compile type-checks expression against the torrent environment
func (c *exprCompiler) Compile(expression string) (CompiledFilter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "empty expression",
		}
	}

	if c.cache != nil {
		if cached, ok := c.cache.get(expression); ok {
			return cached, nil
		}
	}

	program, err := expr.Compile(expression,
		expr.Env(createRuntimeEnvironment(&qbittorrent.TorrentInfo{}, c.helperFuncs)),
		expr.AsBool(),
	)
	if err != nil {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "failed to compile expression",
			Err:        err,
		}
	}

	filter := &exprFilter{
		expression: expression,
		program:    program,
		helpers:    c.helperFuncs,
	}

	if c.cache != nil {
		c.cache.put(filter)
	}

	return filter, nil
}

// Clear removes all cached filters
func (c *exprCompiler) Clear() {
	if c.cache != nil {
		c.cache.clear()
	}
}

// Size returns the number of cached filters
func (c *exprCompiler) Size() int {
	if c.cache != nil {
		return c.cache.size()
	}
	return 0
}

func (f *exprFilter) Evaluate(torrent *qbittorrent.TorrentInfo) bool {
	ok, err := f.Match(torrent)
	return err == nil && ok
}

func (f *exprFilter) Match(torrent *qbittorrent.TorrentInfo) (bool, error) {
	result, err := expr.Run(f.program, createRuntimeEnvironment(torrent, f.helpers))
	if err != nil {
		return false, &EvaluationError{Expression: f.expression, Torrent: torrent.Name, Err: err}
	}
	// AsBool guarantees the type
	return result.(bool), nil
}

func (f *exprFilter) Expression() string {
	return f.expression
}

func createHelperFunctions() map[string]any {
	funcs := make(map[string]any, 16)

	// Date helpers
	funcs["daysSince"] = func(t time.Time) int {
		if t.IsZero() {
			return 0
		}
		return int(time.Since(t).Hours() / 24)
	}
	funcs["daysAgo"] = func(days int) time.Time {
		return time.Now().AddDate(0, 0, -days)
	}
	funcs["hoursAgo"] = func(hours int) time.Time {
		return time.Now().Add(-time.Duration(hours) * time.Hour)
	}
	funcs["parseDate"] = func(dateStr string) time.Time {
		t, _ := time.Parse("2006-01-02", dateStr)
		return t
	}
	funcs["now"] = time.Now

	// String helpers
	funcs["contains"] = func(str, substr string) bool {
		return strings.Contains(strings.ToLower(str), strings.ToLower(substr))
	}
	funcs["startsWith"] = func(str, prefix string) bool {
		return strings.HasPrefix(strings.ToLower(str), strings.ToLower(prefix))
	}
	funcs["endsWith"] = func(str, suffix string) bool {
		return strings.HasSuffix(strings.ToLower(str), strings.ToLower(suffix))
	}
	funcs["lower"] = strings.ToLower
	funcs["upper"] = strings.ToUpper

	// Size helpers, decimal units to match the size shown in replies
	funcs["KB"] = func(n float64) float64 { return n * 1e3 }
	funcs["MB"] = func(n float64) float64 { return n * 1e6 }
	funcs["GB"] = func(n float64) float64 { return n * 1e9 }
	funcs["TB"] = func(n float64) float64 { return n * 1e12 }

	return funcs
}

// createRuntimeEnvironment exposes the torrent fields and torrent bound
// helpers next to the static helpers.
func createRuntimeEnvironment(t *qbittorrent.TorrentInfo, helpers map[string]any) map[string]any {
	env := make(map[string]any, len(helpers)+24)
	maps.Copy(env, helpers)

	env["Torrent"] = t
	env["Name"] = t.Name
	env["Hash"] = t.Hash
	env["State"] = t.State
	env["Category"] = t.Category
	env["Tags"] = t.Tags
	env["SavePath"] = t.SavePath
	env["Size"] = t.Size
	env["Downloaded"] = t.Downloaded
	env["Uploaded"] = t.Uploaded
	env["Progress"] = t.Progress
	env["Ratio"] = t.Ratio
	env["DlSpeed"] = t.DlSpeed
	env["UpSpeed"] = t.UpSpeed
	env["ETA"] = t.ETA
	env["Seeds"] = t.Seeds
	env["Leechs"] = t.Leechs
	env["AddedOn"] = t.AddedOn
	env["CompletionOn"] = t.CompletionOn
	env["Complete"] = t.IsComplete()
	env["Downloading"] = t.IsDownloading()
	env["Seeding"] = t.IsActivelySeeding()

	env["hasTag"] = createHasTagFunc(t.Tags)
	env["inState"] = func(states ...string) bool {
		return slices.Contains(states, t.State)
	}

	return env
}

func createHasTagFunc(tags []string) func(string) bool {
	lowerTags := make([]string, len(tags))
	for i, tag := range tags {
		lowerTags[i] = strings.ToLower(tag)
	}
	return func(tag string) bool {
		return slices.Contains(lowerTags, strings.ToLower(tag))
	}
}
