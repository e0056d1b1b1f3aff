package state

import (
	"strings"
	"time"
)

// NodeType tags a filesystem node.
type NodeType string

const (
	TypeDirectory NodeType = "directory"
	TypeFile      NodeType = "file"
)

// Node is a directory or file in the virtual filesystem.
// Directories use Children; files use Content, Size, Created and Modified.
type Node struct {
	Type     NodeType         `json:"type"`
	Name     string           `json:"name"`
	Children map[string]*Node `json:"children,omitempty"`
	Content  string           `json:"content,omitempty"`
	Size     int              `json:"size,omitempty"`
	Created  int64            `json:"created,omitempty"`
	Modified int64            `json:"modified,omitempty"`
}

// IsDir reports whether n is a directory.
func (n *Node) IsDir() bool {
	return n != nil && n.Type == TypeDirectory
}

// Child returns the named child of a directory.
func (n *Node) Child(name string) (*Node, bool) {
	if !n.IsDir() {
		return nil, false
	}
	c, ok := n.Children[name]
	return c, ok && c != nil
}

// SetChild stores c under name, creating the children map if needed.
func (n *Node) SetChild(name string, c *Node) {
	if n.Children == nil {
		n.Children = make(map[string]*Node)
	}
	n.Children[name] = c
}

// Tree is the value of the fileSystem field. The root lives under "/".
type Tree struct {
	Root *Node `json:"/"`
}

// NewDir returns an empty directory node.
func NewDir(name string, created int64) *Node {
	return &Node{Type: TypeDirectory, Name: name, Children: make(map[string]*Node), Created: created}
}

// NewFile returns a file node holding content.
func NewFile(name, content string, created int64) *Node {
	return &Node{Type: TypeFile, Name: name, Content: content, Size: len(content), Created: created}
}

// asset returns a file that points at a bundled asset; its size is reported as zero.
func asset(name, src string, created int64) *Node {
	return &Node{Type: TypeFile, Name: name, Content: src, Created: created}
}

func dir(name string, created int64, children ...*Node) *Node {
	d := NewDir(name, created)
	for _, c := range children {
		d.Children[c.Name] = c
	}
	return d
}

// DefaultFileSystem builds the tree a fresh session starts with.
func DefaultFileSystem(now time.Time) *Tree {
	ts := now.UnixMilli()
	root := dir("root", ts,
		dir("home", ts,
			dir("documents", ts,
				NewFile("readme.txt", "Welcome to Nexus Shell!\n\nTips:\n- Double click folders to open\n- Right click for actions\n- Use the path bar to jump to any directory\n", ts),
				NewFile("notes.md", "# Notes\n\n- Terminal + File Explorer are connected to the virtual FS\n- Wallpapers live in assets/wallpapers\n", ts),
				dir("projects", ts,
					dir("nexus-shell", ts,
						NewFile("ROADMAP.txt", "Next ideas:\n- File search\n- Drag & drop move\n- More apps\n", ts),
					),
				),
			),
			dir("downloads", ts,
				NewFile("installer.log", "[ok] downloaded: nexus-shell.zip\n[ok] extracted\n[ok] launched\n", ts),
			),
			dir("pictures", ts,
				dir("wallpapers", ts,
					asset("preview-1.jpg", "assets/wallpapers/1.jpg", ts),
					asset("preview-2.jpg", "assets/wallpapers/2.jpg", ts),
					asset("preview-18.png", "assets/wallpapers/18.png", ts),
				),
				dir("camera", ts,
					asset("IMG_0001.jpg", "assets/wallpapers/3.jpg", ts),
					asset("IMG_0002.png", "assets/wallpapers/33.png", ts),
				),
			),
		),
		dir("system", ts,
			dir("bin", ts,
				NewFile("nexus", "#!/bin/sh\necho \"nexus\"\n", ts),
			),
			dir("config", ts,
				NewFile("settings.json", "{\n  \"theme\": \"dark\"\n}\n", ts),
			),
		),
	)
	return &Tree{Root: root}
}

// MergeFileSystemDefaults adds every default node missing from existing without
// touching nodes the user already has. A node whose type differs from the
// default keeps the user's version. existing is modified in place and returned.
func MergeFileSystemDefaults(existing, defaults *Tree) *Tree {
	if existing == nil || existing.Root == nil {
		return defaults
	}
	if defaults == nil || defaults.Root == nil {
		return existing
	}
	existing.Root = mergeNode(existing.Root, defaults.Root)
	return existing
}

func mergeNode(existing, def *Node) *Node {
	if existing == nil {
		return def
	}
	if def == nil || existing.Type != def.Type || existing.Type != TypeDirectory {
		return existing
	}
	for name, child := range def.Children {
		current, ok := existing.Child(name)
		if !ok {
			existing.SetChild(name, child)
			continue
		}
		existing.Children[name] = mergeNode(current, child)
	}
	return existing
}

// repairTree drops nil or untyped children and makes every node's name match
// its key. It returns false when the tree has no usable directory root.
func repairTree(t *Tree) bool {
	if t == nil || t.Root == nil || t.Root.Type != TypeDirectory {
		return false
	}
	repairNode(t.Root)
	return true
}

func repairNode(n *Node) {
	if n.Type != TypeDirectory {
		n.Children = nil
		return
	}
	for name, c := range n.Children {
		if c == nil || (c.Type != TypeDirectory && c.Type != TypeFile) || !ValidName(name) {
			delete(n.Children, name)
			continue
		}
		c.Name = name
		repairNode(c)
	}
}

// ValidName reports whether name can label a node: non-empty, no separator,
// and not one of the reserved "." and "..".
func ValidName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.Contains(name, "/")
}
