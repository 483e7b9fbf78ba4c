package filter

import (
	"maps"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kyubik/qbitbot/qbittorrent"
)

// Finder selects torrents by an expression or a named preset.
type Finder struct {
	compiler Compiler
	presets  map[string]CompiledFilter
	logger   zerolog.Logger
}

// NewFinder compiles presets up front so a bad preset fails at startup.
// Preset names are matched case-insensitively.
func NewFinder(presets map[string]string, logger zerolog.Logger, opts ...ExprCompilerOption) (*Finder, error) {
	opts = append([]ExprCompilerOption{WithCache(64)}, opts...)
	compiler := NewExprCompiler(opts...)

	compiled := make(map[string]CompiledFilter, len(presets))
	for name, expression := range presets {
		f, err := compiler.Compile(expression)
		if err != nil {
			return nil, &PresetError{Name: name, Err: err}
		}
		compiled[strings.ToLower(name)] = f
	}

	return &Finder{
		compiler: compiler,
		presets:  compiled,
		logger:   logger.With().Str("component", "filter").Logger(),
	}, nil
}

// Presets returns the preset names in sorted order
func (f *Finder) Presets() []string {
	return slices.Sorted(maps.Keys(f.presets))
}

// Find returns the torrents matching query, in input order. query is
// either a preset name or an expression.
func (f *Finder) Find(torrents []*qbittorrent.TorrentInfo, query string) ([]*qbittorrent.TorrentInfo, error) {
	filter, err := f.resolve(query)
	if err != nil {
		return nil, err
	}

	var matches []*qbittorrent.TorrentInfo
	for _, t := range torrents {
		ok, err := filter.Match(t)
		if err != nil {
			f.logger.Debug().Err(err).Str("hash", t.Hash).Msg("Filter evaluation failed")
			continue
		}
		if ok {
			matches = append(matches, t)
		}
	}

	f.logger.Debug().
		Str("expression", filter.Expression()).
		Int("candidates", len(torrents)).
		Int("matches", len(matches)).
		Msg("Evaluated filter")

	return matches, nil
}

func (f *Finder) resolve(query string) (CompiledFilter, error) {
	query = strings.TrimSpace(query)
	if preset, ok := f.presets[strings.ToLower(query)]; ok {
		return preset, nil
	}
	return f.compiler.Compile(query)
}
