package vfs

import "errors"

var (
	ErrMissingName       = errors.New("missing name")
	ErrInvalidName       = errors.New("invalid name")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrNameCollision     = errors.New("a directory with that name exists")
	ErrNotADirectory     = errors.New("not a directory")
	ErrDirectoryNotFound = errors.New("directory not found")
	ErrFileNotFound      = errors.New("file not found")
	ErrParentNotFound    = errors.New("parent directory not found")
	ErrRootProtected     = errors.New("refusing to modify root")
	ErrNoHistory         = errors.New("no previous directory")
	ErrNoTree            = errors.New("file system not initialized")
)

// PathError records a failed operation and the path it was applied to.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	if e.Path == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error {
	return e.Err
}

func pathErr(op, path string, err error) error {
	return &PathError{Op: op, Path: path, Err: err}
}
