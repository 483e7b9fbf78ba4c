package filter

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyubik/qbitbot/qbittorrent"
)

func testTorrents() []*qbittorrent.TorrentInfo {
	return []*qbittorrent.TorrentInfo{
		{
			Name: "ubuntu-24.04.iso", Hash: "H1", State: "uploading",
			Tags: []string{"Linux", "iso"}, Size: 6e9, Progress: 1, Ratio: 2.5,
			AddedOn: time.Now().AddDate(0, 0, -60),
		},
		{
			Name: "debian-12.iso", Hash: "H2", State: "downloading",
			Tags: []string{"linux"}, Size: 700e6, Progress: 0.4, Ratio: 0.1,
			AddedOn: time.Now().AddDate(0, 0, -2),
		},
		{
			Name: "Some.Show.S01", Hash: "H3", State: "pausedDL", Category: "tv",
			Size: 12e9, Progress: 0.1,
			AddedOn: time.Now().AddDate(0, 0, -45),
		},
	}
}

func hashes(torrents []*qbittorrent.TorrentInfo) []string {
	out := make([]string, 0, len(torrents))
	for _, t := range torrents {
		out = append(out, t.Hash)
	}
	return out
}

func TestCompile(t *testing.T) {
	tests := []struct {
		name        string
		expression  string
		wantErr     bool
		errContains string
	}{
		{name: "valid expression", expression: `hasTag("linux")`},
		{name: "empty expression", expression: "  ", wantErr: true, errContains: "empty expression"},
		{name: "invalid syntax", expression: `hasTag("unclosed`, wantErr: true},
		{name: "unknown field", expression: `Colour == "red"`, wantErr: true},
		{name: "non boolean", expression: `Size + 1`, wantErr: true},
		{name: "complex expression", expression: `Size > GB(1) and daysSince(AddedOn) > 30 or inState("error", "missingFiles")`},
	}

	compiler := NewExprCompiler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := compiler.Compile(tt.expression)
			if tt.wantErr {
				var compErr *CompilationError
				require.ErrorAs(t, err, &compErr)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, f)
		})
	}
}

func TestEvaluate(t *testing.T) {
	torrents := testTorrents()
	compiler := NewExprCompiler()

	tests := []struct {
		expression string
		want       []string
	}{
		{`hasTag("LINUX")`, []string{"H1", "H2"}},
		{`Complete`, []string{"H1"}},
		{`Downloading`, []string{"H2"}},
		{`Seeding and Ratio >= 2`, []string{"H1"}},
		{`Size > GB(5)`, []string{"H1", "H3"}},
		{`contains(Name, "show")`, []string{"H3"}},
		{`Category == "tv" and Progress < 0.5`, []string{"H3"}},
		{`daysSince(AddedOn) > 30 and not Complete`, []string{"H3"}},
		{`AddedOn > daysAgo(7)`, []string{"H2"}},
		{`inState("uploading", "pausedDL")`, []string{"H1", "H3"}},
		{`"iso" in Tags`, []string{"H1"}},
	}

	for _, tt := range tests {
		t.Run(tt.expression, func(t *testing.T) {
			f, err := compiler.Compile(tt.expression)
			require.NoError(t, err)

			var got []string
			for _, torrent := range torrents {
				if f.Evaluate(torrent) {
					got = append(got, torrent.Hash)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompilerCache(t *testing.T) {
	compiler := NewExprCompiler(WithCache(2))

	first, err := compiler.Compile("Complete")
	require.NoError(t, err)
	again, err := compiler.Compile(" Complete ")
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, compiler.Size())

	_, err = compiler.Compile("Downloading")
	require.NoError(t, err)
	_, err = compiler.Compile("Seeding")
	require.NoError(t, err)
	assert.Equal(t, 2, compiler.Size())

	evicted, err := compiler.Compile("Complete")
	require.NoError(t, err)
	assert.NotSame(t, first, evicted)

	compiler.Clear()
	assert.Zero(t, compiler.Size())
}

func TestCustomFunctions(t *testing.T) {
	compiler := NewExprCompiler(WithCustomFunctions(map[string]any{
		"isHuge": func(size int64) bool { return size > 10e9 },
	}))

	f, err := compiler.Compile("isHuge(Size)")
	require.NoError(t, err)

	torrents := testTorrents()
	assert.False(t, f.Evaluate(torrents[0]))
	assert.True(t, f.Evaluate(torrents[2]))
}

func TestFinder(t *testing.T) {
	finder, err := NewFinder(map[string]string{
		"stale":   "Progress < 1 and daysSince(AddedOn) > 30",
		"seeders": "Seeding",
	}, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, []string{"seeders", "stale"}, finder.Presets())

	matches, err := finder.Find(testTorrents(), "Stale")
	require.NoError(t, err)
	assert.Equal(t, []string{"H3"}, hashes(matches))

	matches, err = finder.Find(testTorrents(), `hasTag("linux")`)
	require.NoError(t, err)
	assert.Equal(t, []string{"H1", "H2"}, hashes(matches))

	matches, err = finder.Find(testTorrents(), `Ratio > 100`)
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = finder.Find(testTorrents(), `Ratio >`)
	var compErr *CompilationError
	assert.ErrorAs(t, err, &compErr)
}

func TestFinderRejectsBadPreset(t *testing.T) {
	_, err := NewFinder(map[string]string{"broken": "Size >"}, zerolog.Nop())

	var presetErr *PresetError
	require.ErrorAs(t, err, &presetErr)
	assert.Equal(t, "broken", presetErr.Name)

	var compErr *CompilationError
	assert.ErrorAs(t, err, &compErr)
}
