package reach

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/reach/internal/discover"
)

// Golden test format. Files maps each project-relative path with matches
// to its excerpt texts in output order; paths not listed must have none.
type goldenFile struct {
	Seeds       []Seed              `json:"seeds"`
	Granularity string              `json:"granularity,omitempty"`
	Files       map[string][]string `json:"files"`
	Unresolved  []Seed              `json:"unresolved,omitempty"`
}

// TestGolden walks testdata/{language}/ directories and checks the
// analysis of each src/ tree against its golden.json.
func TestGolden(t *testing.T) {
	langDirs, err := os.ReadDir("testdata")
	if err != nil {
		t.Skip("no testdata directory found")
	}

	for _, langDir := range langDirs {
		if !langDir.IsDir() {
			continue
		}
		lang := langDir.Name()
		langRoot := filepath.Join("testdata", lang)
		levels, err := os.ReadDir(langRoot)
		if err != nil {
			continue
		}

		for _, level := range levels {
			if !level.IsDir() {
				continue
			}
			testDir := filepath.Join(langRoot, level.Name())
			goldenPath := filepath.Join(testDir, "golden.json")
			srcDir := filepath.Join(testDir, "src")

			if _, err := os.Stat(goldenPath); err != nil {
				continue
			}
			if _, err := os.Stat(srcDir); err != nil {
				continue
			}

			t.Run(lang+"/"+level.Name(), func(t *testing.T) {
				runGoldenTest(t, srcDir, goldenPath)
			})
		}
	}
}

func runGoldenTest(t *testing.T, srcDir, goldenPath string) {
	t.Helper()

	goldenData, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	var golden goldenFile
	require.NoError(t, json.Unmarshal(goldenData, &golden))

	g, err := ParseGranularity(golden.Granularity)
	require.NoError(t, err)

	// Sequential and wave-parallel runs must agree with the golden data.
	for _, workers := range []int{1, 4} {
		e := newTestEngine(t, srcDir,
			WithGranularity(g),
			WithWorkers(workers),
			WithDiscoverOptions(discover.Options{NoGit: true}))
		res, err := e.Analyze(context.Background(), golden.Seeds)
		require.NoError(t, err)
		require.True(t, res.Complete)

		actual := make(map[string][]string)
		for _, fr := range res.Files {
			for _, x := range fr.Excerpts {
				actual[fr.Path] = append(actual[fr.Path], x.Text)
			}
		}
		assert.Equal(t, golden.Files, actual, "workers=%d", workers)

		var unresolved []Seed
		for _, u := range res.Unresolved {
			unresolved = append(unresolved, u.Seed)
		}
		assert.Equal(t, golden.Unresolved, unresolved, "workers=%d", workers)
	}
}
