package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/pkg/sftp"
)

// ErrDirectoryNotEmpty is returned by Delete for a directory that still has
// entries. Deletion is never recursive.
var ErrDirectoryNotEmpty = errors.New("directory not empty")

// EntryKind is the type of a remote entry as far as Delete cares.
type EntryKind int

const (
	EntryFile EntryKind = iota
	EntryDirectory
)

func (k EntryKind) String() string {
	if k == EntryDirectory {
		return "directory"
	}
	return "file"
}

// Kind inspects path without following a final symlink. Anything that is
// not a directory, symlinks included, is an EntryFile.
func (s *Session) Kind(ctx context.Context, path string) (EntryKind, error) {
	var kind EntryKind
	err := s.do(ctx, "stat", path, func(c *sftp.Client) error {
		var err error
		kind, err = entryKind(c, path)
		return err
	})
	return kind, err
}

// Delete removes a file or an empty directory.
func (s *Session) Delete(ctx context.Context, path string) error {
	return s.do(ctx, "delete", path, func(c *sftp.Client) error {
		kind, err := entryKind(c, path)
		if err != nil {
			return err
		}
		switch kind {
		case EntryDirectory:
			return removeDirectory(c, path)
		default:
			return removeFile(c, path)
		}
	})
}

func entryKind(c *sftp.Client, path string) (EntryKind, error) {
	fi, err := c.Lstat(path)
	if err != nil {
		return EntryFile, err
	}
	if fi.IsDir() {
		return EntryDirectory, nil
	}
	return EntryFile, nil
}

func removeFile(c *sftp.Client, path string) error {
	return c.Remove(path)
}

// removeDirectory removes an empty directory. SFTP reports a non-empty
// directory as a generic failure, so the listing is checked to name it.
func removeDirectory(c *sftp.Client, path string) error {
	err := c.RemoveDirectory(path)
	if err == nil {
		return nil
	}
	if entries, lerr := c.ReadDir(path); lerr == nil && len(entries) > 0 {
		return fmt.Errorf("%w (%d entries): %v", ErrDirectoryNotEmpty, len(entries), err)
	}
	return err
}
