package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/procore-go/internal/procore"
)

// fakeLister serves folder listings from memory, keyed by folder ID.
type fakeLister struct {
	folders map[int64]*procore.Folder
	errs    map[int64]error
	calls   []int64
}

func newFakeLister() *fakeLister {
	return &fakeLister{
		folders: make(map[int64]*procore.Folder),
		errs:    make(map[int64]error),
	}
}

func (l *fakeLister) ListFolder(_ context.Context, _, folderID int64) (*procore.Folder, error) {
	l.calls = append(l.calls, folderID)

	if err := l.errs[folderID]; err != nil {
		return nil, err
	}

	f, ok := l.folders[folderID]
	if !ok {
		return nil, fmt.Errorf("no folder %d: %w", folderID, procore.ErrNotFound)
	}

	return f, nil
}

func (l *fakeLister) add(f *procore.Folder) {
	l.folders[f.ID] = f
}

func file(id int64, name string, versions ...procore.FileVersion) procore.File {
	return procore.File{ID: id, Name: name, Versions: versions}
}

func version(id int64, created string, url string) procore.FileVersion {
	var t time.Time
	if created != "" {
		t, _ = time.Parse(time.RFC3339, created)
	}

	return procore.FileVersion{ID: id, CreatedAt: t, URL: url}
}

func testLogger() *slog.Logger {
	return slog.Default()
}

func TestWalk_DrawingsScenario(t *testing.T) {
	t.Parallel()

	l := newFakeLister()
	l.add(&procore.Folder{
		ID:      procore.RootFolderID,
		Folders: []procore.FolderEntry{{ID: 10, Name: "Drawings"}},
		Files:   []procore.File{file(2, "b.xlsx", version(21, "2024-01-01T00:00:00Z", "https://files/b"))},
	})
	l.add(&procore.Folder{
		ID:    10,
		Name:  "Drawings",
		Files: []procore.File{file(1, "a.pdf", version(11, "2024-01-01T00:00:00Z", "https://files/a"))},
	})

	out := t.TempDir()
	res, err := NewWalker(l, testLogger()).Walk(t.Context(), WalkRequest{
		ProjectID:   7,
		ProjectName: "Tower",
		OutputRoot:  out,
	})
	require.NoError(t, err)

	require.Len(t, res.Tasks, 2)
	assert.Equal(t, filepath.Join(out, "Tower", "b.xlsx"), res.Tasks[0].LocalPath)
	assert.Equal(t, "https://files/b", res.Tasks[0].URL)
	assert.Equal(t, "b.xlsx", res.Tasks[0].RemotePath)
	assert.Equal(t, filepath.Join(out, "Tower", "Drawings", "a.pdf"), res.Tasks[1].LocalPath)
	assert.Equal(t, "Drawings/a.pdf", res.Tasks[1].RemotePath)

	assert.Equal(t, WalkStats{Folders: 2, Files: 2}, res.Stats)
	assert.Equal(t, TreeCounts{Folders: 2, Files: 2}, CountTree(res.Root))

	require.Len(t, res.Root.Folders, 1)
	drawings := res.Root.Folders[0]
	assert.Same(t, res.Root, drawings.Parent)
	assert.Equal(t, filepath.Join(out, "Tower", "Drawings"), drawings.LocalPath)
	assert.Nil(t, res.Root.Parent)
}

func TestWalk_SkipsDeletedAndRecycled(t *testing.T) {
	t.Parallel()

	deleted := file(1, "gone.pdf", version(1, "", "https://files/1"))
	deleted.IsDeleted = true

	recycled := file(2, "bin.pdf", version(2, "", "https://files/2"))
	recycled.IsRecycleBin = true

	l := newFakeLister()
	l.add(&procore.Folder{
		ID: procore.RootFolderID,
		Folders: []procore.FolderEntry{
			{ID: 10, Name: "Old", IsDeleted: true},
			{ID: 11, Name: "Recycle Bin", IsRecycleBin: true},
			{ID: 12, Name: "Live"},
		},
		Files: []procore.File{deleted, recycled, file(3, "keep.pdf", version(3, "", "https://files/3"))},
	})
	l.add(&procore.Folder{ID: 12, Name: "Live"})

	res, err := NewWalker(l, testLogger()).Walk(t.Context(), WalkRequest{
		ProjectName: "P", OutputRoot: t.TempDir(),
	})
	require.NoError(t, err)

	require.Len(t, res.Tasks, 1)
	assert.Equal(t, "keep.pdf", res.Tasks[0].RemotePath)
	assert.Equal(t, 4, res.Stats.SkippedDeleted)

	// Deleted folders are never listed.
	assert.Equal(t, []int64{procore.RootFolderID, 12}, l.calls)
}

func TestWalk_SelectsLatestVersion(t *testing.T) {
	t.Parallel()

	l := newFakeLister()
	l.add(&procore.Folder{
		ID: procore.RootFolderID,
		Files: []procore.File{
			file(1, "plan.pdf",
				version(100, "2024-01-01T00:00:00Z", "https://files/v100"),
				version(101, "2024-03-01T00:00:00Z", "https://files/v101"),
				version(102, "2024-02-01T00:00:00Z", "https://files/v102"),
			),
			file(2, "tie.pdf",
				version(200, "2024-01-01T00:00:00Z", "https://files/v200"),
				version(202, "2024-01-01T00:00:00Z", "https://files/v202"),
				version(201, "2024-01-01T00:00:00Z", "https://files/v201"),
			),
		},
	})

	res, err := NewWalker(l, testLogger()).Walk(t.Context(), WalkRequest{
		ProjectName: "P", OutputRoot: t.TempDir(),
	})
	require.NoError(t, err)

	require.Len(t, res.Tasks, 2)
	assert.Equal(t, "https://files/v101", res.Tasks[0].URL)
	assert.Equal(t, "https://files/v202", res.Tasks[1].URL)
	assert.Equal(t, int64(101), res.Root.Files[0].Selected.ID)
}

func TestWalk_SkipsVersionlessFiles(t *testing.T) {
	t.Parallel()

	l := newFakeLister()
	l.add(&procore.Folder{
		ID: procore.RootFolderID,
		Files: []procore.File{
			file(1, "empty.pdf"),
			file(2, "nourl.pdf", version(1, "2024-01-01T00:00:00Z", "")),
		},
	})

	res, err := NewWalker(l, testLogger()).Walk(t.Context(), WalkRequest{
		ProjectName: "P", OutputRoot: t.TempDir(),
	})
	require.NoError(t, err)

	assert.Empty(t, res.Tasks)
	assert.Equal(t, 2, res.Stats.SkippedVersionless)
}

func TestWalk_DeepNestingUsesNoRecursion(t *testing.T) {
	t.Parallel()

	const depth = 5000

	l := newFakeLister()
	for i := int64(0); i < depth; i++ {
		f := &procore.Folder{ID: i}
		f.Folders = []procore.FolderEntry{{ID: i + 1, Name: "d"}}
		l.add(f)
	}

	l.add(&procore.Folder{
		ID:    depth,
		Files: []procore.File{file(1, "bottom.txt", version(1, "", "https://files/bottom"))},
	})

	res, err := NewWalker(l, testLogger()).Walk(t.Context(), WalkRequest{
		ProjectName: "Deep", OutputRoot: "/out",
	})
	require.NoError(t, err)

	assert.Equal(t, TreeCounts{Folders: depth + 1, Files: 1}, CountTree(res.Root))
	require.Len(t, res.Tasks, 1)

	n := res.Root
	levels := 0
	for len(n.Folders) > 0 {
		n = n.Folders[0]
		levels++
	}

	assert.Equal(t, depth, levels)
	assert.Equal(t, filepath.Join(n.LocalPath, "bottom.txt"), res.Tasks[0].LocalPath)
}

func TestWalk_ListingErrorAborts(t *testing.T) {
	t.Parallel()

	l := newFakeLister()
	l.add(&procore.Folder{
		ID:      procore.RootFolderID,
		Folders: []procore.FolderEntry{{ID: 10, Name: "Specs"}},
		Files:   []procore.File{file(1, "a.pdf", version(1, "", "https://files/a"))},
	})
	l.errs[10] = procore.ErrRateLimitExceeded

	res, err := NewWalker(l, testLogger()).Walk(t.Context(), WalkRequest{
		ProjectName: "P", OutputRoot: t.TempDir(),
	})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, procore.ErrRateLimitExceeded)
	assert.Contains(t, err.Error(), "/Specs")
}

func TestWalk_CanceledContext(t *testing.T) {
	t.Parallel()

	l := newFakeLister()
	l.add(&procore.Folder{ID: procore.RootFolderID})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := NewWalker(l, testLogger()).Walk(ctx, WalkRequest{ProjectName: "P", OutputRoot: "/out"})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, l.calls)
}

func TestWalk_EmptyOutputRoot(t *testing.T) {
	t.Parallel()

	_, err := NewWalker(newFakeLister(), testLogger()).Walk(t.Context(), WalkRequest{ProjectName: "P"})
	assert.ErrorIs(t, err, ErrEmptyOutputRoot)
}

func TestWalk_SanitizesNames(t *testing.T) {
	t.Parallel()

	l := newFakeLister()
	l.add(&procore.Folder{
		ID:      procore.RootFolderID,
		Folders: []procore.FolderEntry{{ID: 10, Name: "A/B"}},
	})
	l.add(&procore.Folder{
		ID:    10,
		Files: []procore.File{file(1, "..", version(1, "", "https://files/x"))},
	})

	res, err := NewWalker(l, testLogger()).Walk(t.Context(), WalkRequest{
		ProjectName: "Job 1/2", OutputRoot: "/out",
	})
	require.NoError(t, err)

	require.Len(t, res.Tasks, 1)
	assert.Equal(t, filepath.Join("/out", "Job 1_2", "A_B", "_"), res.Tasks[0].LocalPath)
	assert.Equal(t, "A/B/..", res.Tasks[0].RemotePath)
}

func TestWalk_CountsLocalPathCollisions(t *testing.T) {
	t.Parallel()

	l := newFakeLister()
	l.add(&procore.Folder{
		ID: procore.RootFolderID,
		Files: []procore.File{
			file(1, "A/B", version(1, "", "https://files/1")),
			file(2, "A_B", version(2, "", "https://files/2")),
			file(3, "C", version(3, "", "https://files/3")),
		},
	})

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	res, err := NewWalker(l, logger).Walk(t.Context(), WalkRequest{ProjectName: "P", OutputRoot: "/out"})
	require.NoError(t, err)

	require.Len(t, res.Tasks, 3)
	assert.Equal(t, res.Tasks[0].LocalPath, res.Tasks[1].LocalPath)
	assert.Equal(t, 1, res.Stats.Collisions)
	assert.Equal(t, 3, res.Stats.Files)

	assert.Contains(t, logs.String(), "remote entries share a local path")
	assert.Contains(t, logs.String(), "first=A/B")
	assert.Contains(t, logs.String(), "second=A_B")
}

func TestWalk_NoCollisionsForDistinctNames(t *testing.T) {
	t.Parallel()

	l := newFakeLister()
	l.add(&procore.Folder{
		ID:      procore.RootFolderID,
		Folders: []procore.FolderEntry{{ID: 10, Name: "Docs"}},
		Files:   []procore.File{file(1, "Docs.pdf", version(1, "", "https://files/1"))},
	})
	l.add(&procore.Folder{
		ID:    10,
		Files: []procore.File{file(2, "Docs.pdf", version(2, "", "https://files/2"))},
	})

	res, err := NewWalker(l, testLogger()).Walk(t.Context(), WalkRequest{ProjectName: "P", OutputRoot: "/out"})
	require.NoError(t, err)
	assert.Zero(t, res.Stats.Collisions)
}
