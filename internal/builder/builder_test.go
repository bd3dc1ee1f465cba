package builder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/fxsearch/fxs/internal/config"
	"github.com/fxsearch/fxs/internal/indexreader"
)

// TestMain ensures the worker-pool build path (errgroup-driven analyzeAll)
// never leaks a goroutine across runs.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("sync.runtime_Semacquire"),
	)
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

var sampleTree = map[string]string{
	"pkg/widget.go": "package pkg\n\nfunc Hello() string {\n\treturn \"hello world\"\n}\n",
	"pkg/other.go":  "package pkg\n\nfunc Other() int {\n\treturn 42\n}\n",
	".git/HEAD":     "ref: refs/heads/main\n",
}

func TestBuildWritesIndex(t *testing.T) {
	root := t.TempDir()
	indexRoot := t.TempDir()
	writeTree(t, root, sampleTree)

	cfg := config.Default()
	result, err := Build(context.Background(), root, indexRoot, cfg, false, nil)
	require.NoError(t, err)
	require.Equal(t, 2, result.DocCount) // .git/HEAD is excluded by ignore rules
	require.False(t, result.Report.HasErrors())

	r, err := indexreader.Open(indexRoot)
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, 2, r.DocCount())
}

func TestBuildRefusesWithoutForce(t *testing.T) {
	root := t.TempDir()
	indexRoot := t.TempDir()
	writeTree(t, root, sampleTree)

	cfg := config.Default()
	_, err := Build(context.Background(), root, indexRoot, cfg, false, nil)
	require.NoError(t, err)

	_, err = Build(context.Background(), root, indexRoot, cfg, false, nil)
	require.Error(t, err)

	_, err = Build(context.Background(), root, indexRoot, cfg, true, nil)
	require.NoError(t, err)
}

func TestBuildSkipsOversizeFiles(t *testing.T) {
	root := t.TempDir()
	indexRoot := t.TempDir()
	writeTree(t, root, map[string]string{"big.go": "package pkg\n// filler\n"})

	cfg := config.Default()
	cfg.MaxFileSize = 5 // smaller than big.go's content
	result, err := Build(context.Background(), root, indexRoot, cfg, false, nil)
	require.NoError(t, err)
	require.Equal(t, 0, result.DocCount)
	require.True(t, result.Report.HasErrors())
}

func TestBuildWithSuffixArrayEnablesExactSearch(t *testing.T) {
	root := t.TempDir()
	indexRoot := t.TempDir()
	writeTree(t, root, sampleTree)

	cfg := config.Default()
	cfg.SuffixArray = true
	_, err := Build(context.Background(), root, indexRoot, cfg, false, nil)
	require.NoError(t, err)

	r, err := indexreader.Open(indexRoot)
	require.NoError(t, err)
	defer r.Close()

	docs, ok := r.SearchLiteralExact("hello world")
	require.True(t, ok)
	require.Equal(t, 1, docs.Count())
}

func TestApplyDeltaAddsAndTombstones(t *testing.T) {
	root := t.TempDir()
	indexRoot := t.TempDir()
	writeTree(t, root, sampleTree)

	cfg := config.Default()
	_, err := Build(context.Background(), root, indexRoot, cfg, false, nil)
	require.NoError(t, err)

	// add a new file, then apply it as a delta.
	newRel := "pkg/extra.go"
	require.NoError(t, os.WriteFile(filepath.Join(root, newRel), []byte("package pkg\n\nfunc Extra() {}\n"), 0o644))

	res, err := ApplyDelta(indexRoot, []string{newRel}, []string{"pkg/other.go"}, cfg)
	require.NoError(t, err)
	require.Equal(t, 1, res.NewDocs)
	require.Equal(t, 1, res.Tombstoned)

	r, err := indexreader.Open(indexRoot)
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, 2, r.ValidDocIds().Count()) // widget.go and extra.go remain valid
}

func TestApplyDeltaWithSuffixArrayBuildsNewSegmentArray(t *testing.T) {
	root := t.TempDir()
	indexRoot := t.TempDir()
	writeTree(t, root, sampleTree)

	cfg := config.Default()
	cfg.SuffixArray = true
	_, err := Build(context.Background(), root, indexRoot, cfg, false, nil)
	require.NoError(t, err)

	newRel := "pkg/extra.go"
	require.NoError(t, os.WriteFile(filepath.Join(root, newRel), []byte("package pkg\n\nfunc NeedleText() {}\n"), 0o644))
	_, err = ApplyDelta(indexRoot, []string{newRel}, nil, cfg)
	require.NoError(t, err)

	r, err := indexreader.Open(indexRoot)
	require.NoError(t, err)
	defer r.Close()

	docs, ok := r.SearchLiteralExact("NeedleText")
	require.True(t, ok)
	require.Equal(t, 1, docs.Count())
}
