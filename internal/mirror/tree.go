// Package mirror discovers a Procore project's document tree and replicates
// it on local disk. Walker builds the in-memory tree and the ordered list of
// download tasks; Materializer turns those tasks into files.
package mirror

import (
	"path/filepath"
	"time"
)

// Version is one downloadable revision of a file.
type Version struct {
	ID        int64
	CreatedAt time.Time
	URL       string // usually pre-signed; NEVER log
}

// FolderNode is a remote folder. LocalPath is fixed when the node is created
// from its parent and never recomputed.
type FolderNode struct {
	ID         int64
	Name       string
	Parent     *FolderNode // nil for the project root
	Folders    []*FolderNode
	Files      []*FileNode
	LocalPath  string
	RemotePath string // slash-separated, relative to the project root ("" for root)
}

// FileNode is a remote document kept by the walk, with the version that
// will be materialized.
type FileNode struct {
	ID           int64
	Name         string
	Versions     []Version
	Deleted      bool
	InRecycleBin bool
	Selected     Version
	LocalPath    string
}

// DownloadTask is one file to write: where it goes and where its bytes come
// from. RemotePath and FileID are carried for reporting only.
type DownloadTask struct {
	LocalPath  string
	URL        string
	RemotePath string
	FileID     int64
}

// newChildFolder creates a child of parent and attaches it. The child's
// paths are derived from the parent's exactly once, here.
func newChildFolder(parent *FolderNode, id int64, name string) *FolderNode {
	local := SanitizeName(name)

	child := &FolderNode{
		ID:         id,
		Name:       name,
		Parent:     parent,
		LocalPath:  filepath.Join(parent.LocalPath, local),
		RemotePath: joinRemote(parent.RemotePath, name),
	}

	parent.Folders = append(parent.Folders, child)

	return child
}

func joinRemote(parent, name string) string {
	if parent == "" {
		return name
	}

	return parent + "/" + name
}

// TreeCounts summarizes a tree.
type TreeCounts struct {
	Folders int // including the root
	Files   int
}

// CountTree counts folders and files under root without recursion.
func CountTree(root *FolderNode) TreeCounts {
	var c TreeCounts
	if root == nil {
		return c
	}

	stack := []*FolderNode{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		c.Folders++
		c.Files += len(n.Files)
		stack = append(stack, n.Folders...)
	}

	return c
}

// Folders returns every folder in the tree in breadth-first order, root first.
func Folders(root *FolderNode) []*FolderNode {
	if root == nil {
		return nil
	}

	out := []*FolderNode{root}
	for i := 0; i < len(out); i++ {
		out = append(out, out[i].Folders...)
	}

	return out
}
