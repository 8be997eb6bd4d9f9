package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/tonimelisma/procore-go/internal/procore"
)

// ErrEmptyOutputRoot is returned when a walk has nowhere to place the tree.
var ErrEmptyOutputRoot = errors.New("mirror: output root is empty")

// FolderLister returns the complete, merged contents of one remote folder.
// procore.Client satisfies it.
type FolderLister interface {
	ListFolder(ctx context.Context, projectID, folderID int64) (*procore.Folder, error)
}

// WalkRequest identifies the project to walk and where its tree goes.
type WalkRequest struct {
	ProjectID   int64
	ProjectName string
	OutputRoot  string
}

// WalkStats counts what the walk kept and what it dropped.
type WalkStats struct {
	Folders            int // including the root
	Files              int
	SkippedDeleted     int // files and folders flagged deleted or in the recycle bin
	SkippedVersionless int
	Collisions         int // nodes whose sanitized local path was already taken
}

// WalkResult is the discovered tree plus the download plan derived from it.
type WalkResult struct {
	Root  *FolderNode
	Tasks []DownloadTask
	Stats WalkStats
}

// Walker discovers a project's folder tree.
type Walker struct {
	lister FolderLister
	logger *slog.Logger
}

// NewWalker returns a Walker that lists folders through lister.
func NewWalker(lister FolderLister, logger *slog.Logger) *Walker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Walker{lister: lister, logger: logger}
}

// pendingFolder is a folder node whose contents have not been listed yet.
type pendingFolder struct {
	node     *FolderNode
	remoteID int64
}

// Walk lists the project's root folder and every live descendant, building
// the tree breadth-first from an explicit queue so depth is bounded only by
// memory. Each folder's listing is complete (all pages merged) before its
// children are enqueued. Any listing error aborts the walk: a partial tree
// is never returned.
func (w *Walker) Walk(ctx context.Context, req WalkRequest) (*WalkResult, error) {
	if req.OutputRoot == "" {
		return nil, ErrEmptyOutputRoot
	}

	root := &FolderNode{
		ID:        procore.RootFolderID,
		Name:      req.ProjectName,
		LocalPath: filepath.Join(req.OutputRoot, SanitizeName(req.ProjectName)),
	}

	res := &WalkResult{Root: root}
	seen := map[string]string{root.LocalPath: displayPath(root)}
	queue := []pendingFolder{{node: root, remoteID: procore.RootFolderID}}

	w.logger.Info("walking project",
		slog.Int64("project_id", req.ProjectID),
		slog.String("project", req.ProjectName),
	)

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("mirror: walk canceled: %w", err)
		}

		cur := queue[0]
		queue[0] = pendingFolder{}
		queue = queue[1:]

		listing, err := w.lister.ListFolder(ctx, req.ProjectID, cur.remoteID)
		if err != nil {
			return nil, fmt.Errorf("mirror: listing %q: %w", displayPath(cur.node), err)
		}

		res.Stats.Folders++

		if cur.node == root {
			root.ID = listing.ID
		}

		w.attachFiles(cur.node, listing.Files, res, seen)

		for _, entry := range listing.Folders {
			if entry.IsDeleted || entry.IsRecycleBin {
				res.Stats.SkippedDeleted++
				w.logger.Debug("skipping deleted folder",
					slog.Int64("folder_id", entry.ID),
					slog.String("path", joinRemote(cur.node.RemotePath, entry.Name)),
				)

				continue
			}

			child := newChildFolder(cur.node, entry.ID, entry.Name)
			w.claim(seen, child.LocalPath, child.RemotePath, res)
			queue = append(queue, pendingFolder{node: child, remoteID: entry.ID})
		}
	}

	w.logger.Info("walk complete",
		slog.Int64("project_id", req.ProjectID),
		slog.Int("folders", res.Stats.Folders),
		slog.Int("files", res.Stats.Files),
		slog.Int("skipped_deleted", res.Stats.SkippedDeleted),
		slog.Int("skipped_versionless", res.Stats.SkippedVersionless),
		slog.Int("collisions", res.Stats.Collisions),
	)

	return res, nil
}

func (w *Walker) attachFiles(parent *FolderNode, files []procore.File, res *WalkResult, seen map[string]string) {
	for i := range files {
		f := &files[i]
		remotePath := joinRemote(parent.RemotePath, f.Name)

		if f.IsDeleted || f.IsRecycleBin {
			res.Stats.SkippedDeleted++
			w.logger.Debug("skipping deleted file",
				slog.Int64("file_id", f.ID),
				slog.String("path", remotePath),
			)

			continue
		}

		node := &FileNode{
			ID:           f.ID,
			Name:         f.Name,
			Versions:     toVersions(f.Versions),
			Deleted:      f.IsDeleted,
			InRecycleBin: f.IsRecycleBin,
			LocalPath:    filepath.Join(parent.LocalPath, SanitizeName(f.Name)),
		}

		selected, ok := LatestVersion(node.Versions)
		if !ok {
			res.Stats.SkippedVersionless++
			w.logger.Warn("skipping file without a downloadable version",
				slog.Int64("file_id", f.ID),
				slog.String("path", remotePath),
			)

			continue
		}

		node.Selected = selected
		w.claim(seen, node.LocalPath, remotePath, res)
		parent.Files = append(parent.Files, node)
		res.Stats.Files++

		res.Tasks = append(res.Tasks, DownloadTask{
			LocalPath:  node.LocalPath,
			URL:        selected.URL,
			RemotePath: remotePath,
			FileID:     f.ID,
		})
	}
}

// claim records that remotePath maps to localPath. Distinct remote names
// can sanitize to the same local name (e.g. "A/B" and "A_B"); the later one
// wins on disk, so the overlap is counted and logged.
func (w *Walker) claim(seen map[string]string, localPath, remotePath string, res *WalkResult) {
	prev, ok := seen[localPath]
	if !ok {
		seen[localPath] = remotePath
		return
	}

	res.Stats.Collisions++
	w.logger.Warn("remote entries share a local path",
		slog.String("local_path", localPath),
		slog.String("first", prev),
		slog.String("second", remotePath),
	)
}

func toVersions(in []procore.FileVersion) []Version {
	out := make([]Version, 0, len(in))
	for _, v := range in {
		out = append(out, Version{ID: v.ID, CreatedAt: v.CreatedAt, URL: v.URL})
	}

	return out
}

func displayPath(n *FolderNode) string {
	if n.RemotePath == "" {
		return "/"
	}

	return "/" + n.RemotePath
}
