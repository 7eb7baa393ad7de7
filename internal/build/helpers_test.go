package build

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/conneroisu/stitch/internal/filestore"
	"github.com/conneroisu/stitch/internal/logging"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const (
	testSource = "src"
	testOutput = "dist"
)

var fixedNow = time.Date(2026, time.March, 14, 9, 26, 53, 589_000_000, time.UTC)

func fixedClock() time.Time { return fixedNow }

// newSite returns a store over an in-memory tree holding files, keyed by
// slash paths relative to the source root.
func newSite(t *testing.T, files map[string]string) *filestore.Store {
	t.Helper()
	store := filestore.New(afero.NewMemMapFs())
	for rel, content := range files {
		require.NoError(t, store.WriteFile(filepath.Join(testSource, filepath.FromSlash(rel)), []byte(content)))
	}
	return store
}

func readOutput(t *testing.T, store *filestore.Store, rel string) string {
	t.Helper()
	data, err := store.ReadFile(filepath.Join(testOutput, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func testOptions() Options {
	return Options{
		SourceRoot: testSource,
		OutputDir:  testOutput,
		SiteName:   "Test Site",
		Relativize: true,
	}
}

func testLogger() logging.Logger {
	return logging.Discard()
}
