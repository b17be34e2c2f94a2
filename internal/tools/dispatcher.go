// Package tools maps the six SFTP tools onto the remote session and
// registers them on an MCP server.
package tools

import (
	"context"

	"github.com/filepulse/sftp-mcp-server/internal/errs"
)

// Confirmation strings returned by the mutating tools.
const (
	MsgDeleted          = "Item deleted successfully"
	MsgDirectoryCreated = "Directory created."
	MsgFileWritten      = "File written successfully"
)

// Remote is the part of remote.Session the dispatcher uses.
type Remote interface {
	Connected() bool
	Err() error
	List(ctx context.Context, dir string) ([]string, error)
	Rename(ctx context.Context, oldpath, newpath string) error
	Delete(ctx context.Context, path string) error
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	Mkdir(ctx context.Context, dir string) error
}

// Dispatcher runs one remote call per tool after checking connectivity.
type Dispatcher struct {
	remote Remote
}

// NewDispatcher returns a Dispatcher bound to r.
func NewDispatcher(r Remote) *Dispatcher {
	return &Dispatcher{remote: r}
}

func (d *Dispatcher) ensureConnected() error {
	if !d.remote.Connected() {
		return errs.NotConnected(d.remote.Err())
	}
	return nil
}

// RetrieveObjects lists the entry names in path.
func (d *Dispatcher) RetrieveObjects(ctx context.Context, path string) ([]string, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, err
	}
	return d.remote.List(ctx, path)
}

// RenameObject moves oldpath to newpath.
func (d *Dispatcher) RenameObject(ctx context.Context, oldpath, newpath string) (bool, error) {
	if err := d.ensureConnected(); err != nil {
		return false, err
	}
	if err := d.remote.Rename(ctx, oldpath, newpath); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteObject removes a file or an empty directory.
func (d *Dispatcher) DeleteObject(ctx context.Context, path string) (string, error) {
	if err := d.ensureConnected(); err != nil {
		return "", err
	}
	if err := d.remote.Delete(ctx, path); err != nil {
		return "", err
	}
	return MsgDeleted, nil
}

// DownloadFile returns the whole file. The content is held in memory and
// no size limit is applied.
func (d *Dispatcher) DownloadFile(ctx context.Context, path string) ([]byte, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, err
	}
	return d.remote.ReadFile(ctx, path)
}

// CreateDirectory creates path and any missing parents.
func (d *Dispatcher) CreateDirectory(ctx context.Context, path string) (string, error) {
	if err := d.ensureConnected(); err != nil {
		return "", err
	}
	if err := d.remote.Mkdir(ctx, path); err != nil {
		return "", err
	}
	return MsgDirectoryCreated, nil
}

// WriteToFile replaces the content of path with content.
func (d *Dispatcher) WriteToFile(ctx context.Context, path, content string) (string, error) {
	if err := d.ensureConnected(); err != nil {
		return "", err
	}
	if err := d.remote.WriteFile(ctx, path, []byte(content)); err != nil {
		return "", err
	}
	return MsgFileWritten, nil
}
