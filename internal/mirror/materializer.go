package mirror

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	defaultDirPerm  fs.FileMode = 0o755
	defaultFilePerm fs.FileMode = 0o644
	partialSuffix               = ".partial"
)

// partialPattern names the temp file for target. The leading dot and the
// random infix keep it distinct from every remote sibling name, including
// one that itself ends in ".partial".
func partialPattern(target string) string {
	return "." + filepath.Base(target) + ".*" + partialSuffix
}

// Fetcher streams the bytes behind a download URL into w.
// procore.Client satisfies it.
type Fetcher interface {
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}

// MaterializerOptions controls local file modes. Zero values use 0755/0644.
type MaterializerOptions struct {
	DirPerm  fs.FileMode
	FilePerm fs.FileMode
}

// Materializer writes download tasks to disk one at a time.
type Materializer struct {
	fetcher  Fetcher
	dirPerm  fs.FileMode
	filePerm fs.FileMode
	logger   *slog.Logger
}

// NewMaterializer returns a Materializer fetching through f.
func NewMaterializer(f Fetcher, opts MaterializerOptions, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}

	if opts.DirPerm == 0 {
		opts.DirPerm = defaultDirPerm
	}

	if opts.FilePerm == 0 {
		opts.FilePerm = defaultFilePerm
	}

	return &Materializer{
		fetcher:  f,
		dirPerm:  opts.DirPerm,
		filePerm: opts.FilePerm,
		logger:   logger,
	}
}

// EnsureDirs creates the local directory for every folder in the tree,
// including folders with no files, so the local layout matches the remote
// one even where nothing is downloaded.
func (m *Materializer) EnsureDirs(root *FolderNode) error {
	for _, n := range Folders(root) {
		if err := os.MkdirAll(n.LocalPath, m.dirPerm); err != nil {
			return fmt.Errorf("mirror: creating directory %s: %w", n.LocalPath, err)
		}
	}

	return nil
}

// Run materializes tasks in order. A failing task is recorded and the next
// one proceeds. If ctx is canceled, the task in flight and every remaining
// task are recorded as failed with the context error.
func (m *Materializer) Run(ctx context.Context, tasks []DownloadTask) *Summary {
	sum := &Summary{}

	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			for _, rest := range tasks[i:] {
				sum.Failed = append(sum.Failed, Failure{Task: rest, Err: err})
			}

			m.logger.Warn("materialization canceled",
				slog.Int("remaining", len(tasks)-i),
			)

			break
		}

		n, err := m.materialize(ctx, task)
		if err != nil {
			m.logger.Warn("download failed",
				slog.String("path", task.RemotePath),
				slog.Int64("file_id", task.FileID),
				slog.String("error", err.Error()),
			)

			sum.Failed = append(sum.Failed, Failure{Task: task, Err: err})

			continue
		}

		m.logger.Debug("downloaded",
			slog.String("path", task.RemotePath),
			slog.Int64("bytes", n),
		)

		sum.Succeeded = append(sum.Succeeded, task)
		sum.Bytes += n
	}

	return sum
}

// materialize streams one task into a hidden temp file next to the target
// and renames it over the target. The target is never left half-written.
func (m *Materializer) materialize(ctx context.Context, task DownloadTask) (int64, error) {
	dir := filepath.Dir(task.LocalPath)
	if err := os.MkdirAll(dir, m.dirPerm); err != nil {
		return 0, fmt.Errorf("mirror: creating directory for %s: %w", task.LocalPath, err)
	}

	f, err := os.CreateTemp(dir, partialPattern(task.LocalPath))
	if err != nil {
		return 0, fmt.Errorf("mirror: creating partial file for %s: %w", task.LocalPath, err)
	}

	partialPath := f.Name()

	// CreateTemp always uses 0600.
	if err := f.Chmod(m.filePerm); err != nil {
		m.closeAndRemove(f)
		return 0, fmt.Errorf("mirror: setting mode on %s: %w", partialPath, err)
	}

	n, err := m.fetcher.Download(ctx, task.URL, f)
	if err != nil {
		m.closeAndRemove(f)
		return 0, fmt.Errorf("mirror: downloading %s: %w", task.RemotePath, err)
	}

	if err := f.Close(); err != nil {
		m.removePartial(partialPath)
		return 0, fmt.Errorf("mirror: closing partial file %s: %w", partialPath, err)
	}

	if err := os.Rename(partialPath, task.LocalPath); err != nil {
		m.removePartial(partialPath)
		return 0, fmt.Errorf("mirror: renaming partial to %s: %w", task.LocalPath, err)
	}

	return n, nil
}

func (m *Materializer) closeAndRemove(f *os.File) {
	if err := f.Close(); err != nil {
		m.logger.Warn("failed to close partial file",
			slog.String("path", f.Name()), slog.String("error", err.Error()))
	}

	m.removePartial(f.Name())
}

func (m *Materializer) removePartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		m.logger.Warn("failed to remove partial file",
			slog.String("path", path), slog.String("error", err.Error()))
	}
}
