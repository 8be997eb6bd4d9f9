package procore

import "time"

// Company is a Procore company the credential can see.
type Company struct {
	ID     int64
	Name   string
	Active bool
}

// Project is a project inside a company.
type Project struct {
	ID        int64
	Name      string
	CompanyID int64
	Active    bool
}

// Folder is one folder's complete listing: its direct sub-folders and files,
// merged across every page the server returned. Fields are normalized from
// the API response; callers never see raw JSON.
type Folder struct {
	ID           int64
	Name         string
	ParentID     int64 // 0 for the project root
	IsDeleted    bool
	IsRecycleBin bool
	Folders      []FolderEntry
	Files        []File
}

// FolderEntry is a sub-folder reference inside a listing. Its own contents
// need a separate ListFolder call.
type FolderEntry struct {
	ID           int64
	Name         string
	IsDeleted    bool
	IsRecycleBin bool
}

// File is a document with its version history.
type File struct {
	ID           int64
	Name         string
	IsDeleted    bool
	IsRecycleBin bool
	Versions     []FileVersion
}

// FileVersion describes one stored revision of a File.
type FileVersion struct {
	ID        int64
	Number    int
	CreatedAt time.Time // zero if the server sent no parseable timestamp
	URL       string    // usually pre-signed; NEVER log
}
