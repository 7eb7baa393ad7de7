package filestore

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"syscall"
	"testing"

	stitcherrors "github.com/conneroisu/stitch/internal/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lockedFs refuses to open files listed in locked while they exist, the way
// a file held open by another process behaves. Removing the file clears the
// lock. Paths in broken refuse every write.
type lockedFs struct {
	afero.Fs
	locked map[string]bool
	broken map[string]bool
}

func newLockedFs() *lockedFs {
	return &lockedFs{Fs: afero.NewMemMapFs(), locked: map[string]bool{}, broken: map[string]bool{}}
}

func (l *lockedFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR) != 0 {
		if l.broken[name] {
			return nil, &os.PathError{Op: "open", Path: name, Err: syscall.EIO}
		}
		if l.locked[name] {
			return nil, &os.PathError{Op: "open", Path: name, Err: syscall.EBUSY}
		}
	}
	return l.Fs.OpenFile(name, flag, perm)
}

func (l *lockedFs) Remove(name string) error {
	delete(l.locked, name)
	return l.Fs.Remove(name)
}

func TestWriteFileCreatesParents(t *testing.T) {
	store := New(afero.NewMemMapFs())

	require.NoError(t, store.WriteFile(filepath.Join("dist", "a", "b", "c.html"), []byte("x")))

	data, err := store.ReadFile(filepath.Join("dist", "a", "b", "c.html"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestWriteWithRetry(t *testing.T) {
	t.Run("first attempt succeeds", func(t *testing.T) {
		store := New(afero.NewMemMapFs())
		require.NoError(t, store.WriteWithRetry("out.html", []byte("new")))
	})

	t.Run("locked file is removed and rewritten", func(t *testing.T) {
		fsys := newLockedFs()
		require.NoError(t, afero.WriteFile(fsys.Fs, "out.html", []byte("stale"), 0o644))
		fsys.locked["out.html"] = true

		store := New(fsys)
		require.NoError(t, store.WriteWithRetry("out.html", []byte("fresh")))

		data, err := store.ReadFile("out.html")
		require.NoError(t, err)
		assert.Equal(t, "fresh", string(data))
	})

	t.Run("second failure is reported", func(t *testing.T) {
		fsys := newLockedFs()
		fsys.broken["out.html"] = true

		store := New(fsys)
		err := store.WriteWithRetry("out.html", []byte("fresh"))

		require.Error(t, err)
		assert.True(t, errors.Is(err, stitcherrors.ErrWriteFailed))
		assert.Contains(t, err.Error(), "out.html")
	})
}

func TestCopyTree(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store := New(fsys)

	require.NoError(t, store.WriteFile(filepath.Join("src", "css", "site.css"), []byte("body{}")))
	require.NoError(t, store.WriteFile(filepath.Join("src", "css", "vendor", "reset.css"), []byte("*{}")))

	var copied []string
	err := store.CopyTree(filepath.Join("src", "css"), filepath.Join("dist", "css"), func(rel string, err error) {
		assert.NoError(t, err)
		copied = append(copied, rel)
	})
	require.NoError(t, err)

	sort.Strings(copied)
	assert.Equal(t, []string{"site.css", "vendor/reset.css"}, copied)

	data, err := store.ReadFile(filepath.Join("dist", "css", "vendor", "reset.css"))
	require.NoError(t, err)
	assert.Equal(t, "*{}", string(data))
}

func TestCopyTreeMissingSource(t *testing.T) {
	store := New(afero.NewMemMapFs())

	err := store.CopyTree("nope", "dist", nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, stitcherrors.ErrSourceMissing))
}

func TestExistsAndIsDir(t *testing.T) {
	store := New(afero.NewMemMapFs())
	require.NoError(t, store.WriteFile(filepath.Join("a", "b.txt"), nil))

	assert.True(t, store.Exists("a"))
	assert.True(t, store.IsDir("a"))
	assert.True(t, store.Exists(filepath.Join("a", "b.txt")))
	assert.False(t, store.IsDir(filepath.Join("a", "b.txt")))
	assert.False(t, store.Exists("c"))
}
