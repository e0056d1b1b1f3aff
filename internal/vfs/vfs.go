// Package vfs implements the shell's in-memory filesystem. The tree itself is
// owned by the state store: every operation reads the current tree from the
// store, mutates it in place and writes it back as the fileSystem field so
// subscribers see the change.
//
// A FileSystem is not safe for concurrent use; the shell serializes calls on
// its executor.
package vfs

import (
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/zot/nexus-shell/internal/state"
)

// MaxHistory bounds the back-navigation history.
const MaxHistory = 50

// Store is the part of the state store the filesystem needs.
type Store interface {
	Get(key string) any
	SetState(p state.Partial, opts ...state.Option)
}

// Entry is one item of a directory listing.
type Entry struct {
	Name string         `json:"name"`
	Type state.NodeType `json:"type"`
}

// Listing is the sorted contents of a directory.
type Listing struct {
	Path  string  `json:"path"`
	Items []Entry `json:"items"`
}

// RenameResult describes a successful rename. Cwd is set when the current
// directory was rewritten.
type RenameResult struct {
	From string `json:"from"`
	To   string `json:"to"`
	Cwd  string `json:"cwd,omitempty"`
}

// FileSystem operates on the tree held by a Store.
type FileSystem struct {
	store   Store
	history []string
	lang    language.Tag
	now     func() time.Time
}

// New returns a filesystem bound to store.
func New(store Store) *FileSystem {
	return &FileSystem{
		store: store,
		lang:  language.Und,
		now:   time.Now,
	}
}

// SetClock replaces the timestamp source, for tests.
func (fs *FileSystem) SetClock(now func() time.Time) {
	fs.now = now
}

// SetLanguage selects the collation used to sort listings.
func (fs *FileSystem) SetLanguage(tag language.Tag) {
	fs.lang = tag
}

func (fs *FileSystem) tree() *state.Tree {
	t, _ := fs.store.Get(state.FieldFileSystem).(*state.Tree)
	if t == nil || t.Root == nil {
		return nil
	}
	return t
}

// commit writes the mutated tree back, together with any extra fields.
func (fs *FileSystem) commit(t *state.Tree, extra state.Partial) {
	p := state.Partial{state.FieldFileSystem: t}
	for k, v := range extra {
		p[k] = v
	}
	fs.store.SetState(p)
}

func (fs *FileSystem) stamp() int64 {
	return fs.now().UnixMilli()
}

// Pwd returns the current directory.
func (fs *FileSystem) Pwd() string {
	if cwd, ok := fs.store.Get(state.FieldCurrentDirectory).(string); ok && cwd != "" {
		return cwd
	}
	return "/"
}

// NormalizePath resolves input against base (the current directory when base
// is empty) and returns an absolute path with no "." or ".." segments and no
// trailing slash. ".." at the root stays at the root.
func (fs *FileSystem) NormalizePath(input, base string) string {
	if base == "" {
		base = fs.Pwd()
	}
	return normalize(input, base)
}

func normalize(input, base string) string {
	raw := strings.TrimSpace(input)
	if !strings.HasPrefix(raw, "/") {
		raw = strings.TrimRight(base, "/") + "/" + raw
	}

	var stack []string
	for _, part := range strings.Split(raw, "/") {
		switch part {
		case "", ".":
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, part)
		}
	}
	return "/" + strings.Join(stack, "/")
}

// split returns the parent path and last segment of a normalized path.
func split(p string) (parent, name string) {
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return "/", p[i+1:]
	}
	return p[:i], p[i+1:]
}

func join(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

// lookup walks a normalized path from the root.
func lookup(t *state.Tree, p string) (*state.Node, bool) {
	if t == nil {
		return nil, false
	}
	current := t.Root
	if p == "/" {
		return current, true
	}
	for _, part := range strings.Split(strings.TrimPrefix(p, "/"), "/") {
		next, ok := current.Child(part)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// GetNode resolves path (relative to the current directory) to a node.
// Every intermediate segment must be an existing directory.
func (fs *FileSystem) GetNode(path string) (*state.Node, error) {
	p := fs.NormalizePath(path, "")
	n, ok := lookup(fs.tree(), p)
	if !ok {
		return nil, pathErr("stat", p, ErrNotFound)
	}
	return n, nil
}

// Exists reports whether path resolves to a node.
func (fs *FileSystem) Exists(path string) bool {
	_, err := fs.GetNode(path)
	return err == nil
}

// List returns the entries of a directory sorted by name. An empty path lists
// the current directory.
func (fs *FileSystem) List(path string) (Listing, error) {
	p := fs.NormalizePath(path, "")
	n, ok := lookup(fs.tree(), p)
	if !ok {
		return Listing{Path: p, Items: []Entry{}}, pathErr("list", p, ErrNotFound)
	}
	if !n.IsDir() {
		return Listing{Path: p, Items: []Entry{}}, pathErr("list", p, ErrNotADirectory)
	}

	names := fs.sortedNames(n)
	items := make([]Entry, 0, len(names))
	for _, name := range names {
		items = append(items, Entry{Name: name, Type: n.Children[name].Type})
	}
	return Listing{Path: p, Items: items}, nil
}

func (fs *FileSystem) sortedNames(dir *state.Node) []string {
	names := make([]string, 0, len(dir.Children))
	for name, c := range dir.Children {
		if c != nil {
			names = append(names, name)
		}
	}
	collate.New(fs.lang).SortStrings(names)
	return names
}

// resolveDir returns the normalized path of a directory or ErrDirectoryNotFound.
func (fs *FileSystem) resolveDir(op, path string) (string, error) {
	p := fs.NormalizePath(path, "")
	n, ok := lookup(fs.tree(), p)
	if !ok || !n.IsDir() {
		return p, pathErr(op, p, ErrDirectoryNotFound)
	}
	return p, nil
}

// Cd changes the current directory.
func (fs *FileSystem) Cd(path string) (string, error) {
	p, err := fs.resolveDir("cd", path)
	if err != nil {
		return p, err
	}
	fs.store.SetState(state.Partial{state.FieldCurrentDirectory: p})
	return p, nil
}

// NavigateTo is Cd that remembers the directory it left, for GoBack.
func (fs *FileSystem) NavigateTo(path string) (string, error) {
	from := fs.Pwd()
	p, err := fs.resolveDir("cd", path)
	if err != nil {
		return p, err
	}
	if p != from {
		fs.history = append(fs.history, from)
		if len(fs.history) > MaxHistory {
			fs.history = fs.history[len(fs.history)-MaxHistory:]
		}
	}
	fs.store.SetState(state.Partial{state.FieldCurrentDirectory: p})
	return p, nil
}

// GoBack returns to the directory NavigateTo last left.
func (fs *FileSystem) GoBack() (string, error) {
	if len(fs.history) == 0 {
		return fs.Pwd(), pathErr("back", "", ErrNoHistory)
	}
	prev := fs.history[len(fs.history)-1]
	fs.history = fs.history[:len(fs.history)-1]
	return fs.Cd(prev)
}

// ClearHistory forgets every directory NavigateTo has left.
func (fs *FileSystem) ClearHistory() {
	fs.history = nil
}

// History returns the back-navigation stack, oldest first.
func (fs *FileSystem) History() []string {
	return append([]string(nil), fs.history...)
}

// target resolves the name-or-path argument of a create operation to its
// parent directory and new name.
func (fs *FileSystem) target(op, nameOrPath string) (*state.Tree, *state.Node, string, error) {
	raw := strings.TrimSpace(nameOrPath)
	if raw == "" {
		return nil, nil, "", pathErr(op, "", ErrMissingName)
	}
	segments := strings.FieldsFunc(raw, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return nil, nil, "", pathErr(op, raw, ErrInvalidName)
	}
	if last := segments[len(segments)-1]; !state.ValidName(last) {
		return nil, nil, "", pathErr(op, raw, ErrInvalidName)
	}

	p := fs.NormalizePath(raw, "")
	dir, name := split(p)
	t := fs.tree()
	if t == nil {
		return nil, nil, "", pathErr(op, p, ErrNoTree)
	}
	parent, ok := lookup(t, dir)
	if !ok || !parent.IsDir() {
		return nil, nil, "", pathErr(op, dir, ErrParentNotFound)
	}
	return t, parent, name, nil
}

// Mkdir creates an empty directory and returns its absolute path.
func (fs *FileSystem) Mkdir(nameOrPath string) (string, error) {
	t, parent, name, err := fs.target("mkdir", nameOrPath)
	if err != nil {
		return "", err
	}
	p := fs.NormalizePath(nameOrPath, "")
	if _, exists := parent.Child(name); exists {
		return p, pathErr("mkdir", p, ErrAlreadyExists)
	}

	parent.SetChild(name, state.NewDir(name, fs.stamp()))
	fs.commit(t, nil)
	return p, nil
}

// Touch creates a file or overwrites an existing one. Overwriting keeps the
// creation time and updates the modification time.
func (fs *FileSystem) Touch(nameOrPath, content string) (string, error) {
	t, parent, name, err := fs.target("touch", nameOrPath)
	if err != nil {
		return "", err
	}
	p := fs.NormalizePath(nameOrPath, "")
	now := fs.stamp()

	created := now
	if existing, ok := parent.Child(name); ok {
		if existing.IsDir() {
			return p, pathErr("touch", p, ErrNameCollision)
		}
		if existing.Created != 0 {
			created = existing.Created
		}
	}

	file := state.NewFile(name, content, created)
	file.Modified = now
	parent.SetChild(name, file)
	fs.commit(t, nil)
	return p, nil
}

// Rm deletes a file or directory, with everything beneath it.
func (fs *FileSystem) Rm(nameOrPath string) error {
	raw := strings.TrimSpace(nameOrPath)
	if raw == "" {
		return pathErr("rm", "", ErrMissingName)
	}
	p := fs.NormalizePath(raw, "")
	if p == "/" {
		return pathErr("rm", p, ErrRootProtected)
	}

	t := fs.tree()
	dir, name := split(p)
	parent, ok := lookup(t, dir)
	if !ok || !parent.IsDir() {
		return pathErr("rm", dir, ErrParentNotFound)
	}
	if _, ok := parent.Child(name); !ok {
		return pathErr("rm", p, ErrNotFound)
	}

	delete(parent.Children, name)
	fs.commit(t, nil)
	return nil
}

// Rename gives a node a new name within the same directory. When the current
// directory is the renamed node or lies beneath it, the current directory is
// rewritten to the new path.
func (fs *FileSystem) Rename(nameOrPath, newName string) (RenameResult, error) {
	raw := strings.TrimSpace(nameOrPath)
	next := strings.TrimSpace(newName)
	if raw == "" {
		return RenameResult{}, pathErr("rename", "", ErrMissingName)
	}
	if !state.ValidName(next) {
		return RenameResult{}, pathErr("rename", next, ErrInvalidName)
	}

	oldPath := fs.NormalizePath(raw, "")
	if oldPath == "/" {
		return RenameResult{}, pathErr("rename", oldPath, ErrRootProtected)
	}

	t := fs.tree()
	dir, oldName := split(oldPath)
	parent, ok := lookup(t, dir)
	if !ok || !parent.IsDir() {
		return RenameResult{}, pathErr("rename", dir, ErrParentNotFound)
	}
	node, ok := parent.Child(oldName)
	if !ok {
		return RenameResult{}, pathErr("rename", oldPath, ErrNotFound)
	}
	if _, exists := parent.Child(next); exists {
		return RenameResult{}, pathErr("rename", join(dir, next), ErrAlreadyExists)
	}

	node.Name = next
	node.Modified = fs.stamp()
	delete(parent.Children, oldName)
	parent.SetChild(next, node)

	result := RenameResult{From: oldPath, To: join(dir, next)}
	cwd := fs.Pwd()
	if cwd == oldPath || strings.HasPrefix(cwd, oldPath+"/") {
		result.Cwd = result.To + cwd[len(oldPath):]
		fs.commit(t, state.Partial{state.FieldCurrentDirectory: result.Cwd})
		return result, nil
	}
	fs.commit(t, nil)
	return result, nil
}

// ReadFile returns the content of a file.
func (fs *FileSystem) ReadFile(path string) (string, error) {
	p := fs.NormalizePath(path, "")
	n, ok := lookup(fs.tree(), p)
	if !ok || n.Type != state.TypeFile {
		return "", pathErr("read", p, ErrFileNotFound)
	}
	return n.Content, nil
}

// WalkFunc is called for every node visited by Walk. Returning an error stops the walk.
type WalkFunc func(path string, n *state.Node) error

// Walk visits path and everything beneath it depth-first, children in
// listing order.
func (fs *FileSystem) Walk(path string, fn WalkFunc) error {
	p := fs.NormalizePath(path, "")
	n, ok := lookup(fs.tree(), p)
	if !ok {
		return pathErr("walk", p, ErrNotFound)
	}
	return fs.walk(p, n, fn)
}

func (fs *FileSystem) walk(p string, n *state.Node, fn WalkFunc) error {
	if err := fn(p, n); err != nil {
		return err
	}
	if !n.IsDir() {
		return nil
	}
	for _, name := range fs.sortedNames(n) {
		if err := fs.walk(join(p, name), n.Children[name], fn); err != nil {
			return err
		}
	}
	return nil
}
