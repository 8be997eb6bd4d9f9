package procore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"
)

// RootFolderID asks ListFolder for the project's top-level folder.
const RootFolderID int64 = 0

// folderResponse mirrors the Procore folder JSON. Unexported; callers use
// Folder via merge/normalization.
type folderResponse struct {
	ID           int64             `json:"id"`
	Name         string            `json:"name"`
	ParentID     *int64            `json:"parent_id"`
	IsDeleted    bool              `json:"is_deleted"`
	IsRecycleBin bool              `json:"is_recycle_bin"`
	Folders      []folderEntryResp `json:"folders"`
	Files        []fileResponse    `json:"files"`
}

type folderEntryResp struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	IsDeleted    bool   `json:"is_deleted"`
	IsRecycleBin bool   `json:"is_recycle_bin"`
}

type fileResponse struct {
	ID           int64                 `json:"id"`
	Name         string                `json:"name"`
	IsDeleted    bool                  `json:"is_deleted"`
	IsRecycleBin bool                  `json:"is_recycle_bin"`
	FileVersions []fileVersionResponse `json:"file_versions"`
}

type fileVersionResponse struct {
	ID        int64  `json:"id"`
	Number    int    `json:"number"`
	CreatedAt string `json:"created_at"`
	URL       string `json:"url"`
}

func (r *fileResponse) toFile(logger *slog.Logger) File {
	f := File{
		ID:           r.ID,
		Name:         r.Name,
		IsDeleted:    r.IsDeleted,
		IsRecycleBin: r.IsRecycleBin,
		Versions:     make([]FileVersion, 0, len(r.FileVersions)),
	}

	for i := range r.FileVersions {
		v := &r.FileVersions[i]
		f.Versions = append(f.Versions, FileVersion{
			ID:        v.ID,
			Number:    v.Number,
			CreatedAt: parseTimestamp(v.CreatedAt, r.ID, v.ID, logger),
			URL:       v.URL,
		})
	}

	return f
}

// parseTimestamp parses an RFC3339 created_at. Unparseable values become the
// zero time so such a version never outranks one with a real timestamp.
func parseTimestamp(raw string, fileID, versionID int64, logger *slog.Logger) time.Time {
	if raw == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		logger.Warn("invalid version timestamp, treating as oldest",
			slog.Int64("file_id", fileID),
			slog.Int64("version_id", versionID),
			slog.String("raw", raw),
			slog.String("error", err.Error()),
		)

		return time.Time{}
	}

	return t
}

// folderPath returns the API path for a folder listing.
func folderPath(folderID int64) string {
	if folderID == RootFolderID {
		return "/folders"
	}

	return "/folders/" + strconv.FormatInt(folderID, 10)
}

// ListFolder returns the full contents of one folder, following pagination
// until the server reports no more entries. Entries repeated across pages
// are kept once. folderID RootFolderID lists the project's root folder.
func (c *Client) ListFolder(ctx context.Context, projectID, folderID int64) (*Folder, error) {
	path := folderPath(folderID)
	query := url.Values{"project_id": {strconv.FormatInt(projectID, 10)}}

	c.logger.Debug("listing folder",
		slog.Int64("project_id", projectID),
		slog.Int64("folder_id", folderID),
	)

	var (
		out         Folder
		seenFolders = make(map[int64]bool)
		seenFiles   = make(map[int64]bool)
	)

	err := c.fetchAllPages(ctx, path, query, func(page int, body []byte) (int, error) {
		var fr folderResponse
		if err := json.Unmarshal(body, &fr); err != nil {
			return 0, fmt.Errorf("procore: decoding folder %d page %d: %w", folderID, page, err)
		}

		if page == 1 {
			out.ID = fr.ID
			out.Name = fr.Name
			out.IsDeleted = fr.IsDeleted
			out.IsRecycleBin = fr.IsRecycleBin

			if fr.ParentID != nil {
				out.ParentID = *fr.ParentID
			}
		}

		for i := range fr.Folders {
			e := &fr.Folders[i]
			if seenFolders[e.ID] {
				continue
			}

			seenFolders[e.ID] = true
			out.Folders = append(out.Folders, FolderEntry{
				ID:           e.ID,
				Name:         e.Name,
				IsDeleted:    e.IsDeleted,
				IsRecycleBin: e.IsRecycleBin,
			})
		}

		for i := range fr.Files {
			if seenFiles[fr.Files[i].ID] {
				continue
			}

			seenFiles[fr.Files[i].ID] = true
			out.Files = append(out.Files, fr.Files[i].toFile(c.logger))
		}

		return len(fr.Folders) + len(fr.Files), nil
	},
		slog.Int64("project_id", projectID),
		slog.Int64("folder_id", folderID),
	)
	if err != nil {
		return nil, fmt.Errorf("procore: listing folder %d: %w", folderID, err)
	}

	c.logger.Debug("listed folder",
		slog.Int64("folder_id", folderID),
		slog.Int("folders", len(out.Folders)),
		slog.Int("files", len(out.Files)),
	)

	return &out, nil
}
