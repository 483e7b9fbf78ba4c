package filter

import "github.com/kyubik/qbitbot/qbittorrent"

// Filter selects torrents
type Filter interface {
	// Evaluate reports whether the torrent matches. Evaluation failures
	// count as no match.
	Evaluate(torrent *qbittorrent.TorrentInfo) bool
}

// CompiledFilter represents a pre-compiled filter ready for evaluation
type CompiledFilter interface {
	Filter

	// Match is Evaluate with the evaluation error exposed
	Match(torrent *qbittorrent.TorrentInfo) (bool, error)

	// Expression returns the filter expression as written
	Expression() string
}

// Compiler compiles filter expressions into executable filters
type Compiler interface {
	Compile(expression string) (CompiledFilter, error)
}

// CachingCompiler provides caching for compiled filters
type CachingCompiler interface {
	Compiler

	// Clear removes all cached filters
	Clear()

	// Size returns the number of cached filters
	Size() int
}
