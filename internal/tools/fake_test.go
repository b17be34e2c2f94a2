package tools

import (
	"context"
	"errors"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/filepulse/sftp-mcp-server/internal/errs"
)

var errNotEmpty = errors.New("directory not empty")

// memRemote is an in-memory Remote that mirrors the session's error kinds
// and counts every remote call.
type memRemote struct {
	mu        sync.Mutex
	connected bool
	connErr   error
	dirs      map[string]bool
	files     map[string][]byte
	calls     int
}

func newMemRemote() *memRemote {
	return &memRemote{
		connected: true,
		dirs:      map[string]bool{"/": true},
		files:     map[string][]byte{},
	}
}

func disconnectedRemote(cause error) *memRemote {
	m := newMemRemote()
	m.connected = false
	m.connErr = cause
	return m
}

func (m *memRemote) Connected() bool { return m.connected }
func (m *memRemote) Err() error      { return m.connErr }

func (m *memRemote) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *memRemote) begin() {
	m.mu.Lock()
	m.calls++
}

func (m *memRemote) exists(p string) bool {
	_, isFile := m.files[p]
	return isFile || m.dirs[p]
}

func (m *memRemote) children(dir string) []string {
	var names []string
	for p := range m.dirs {
		if p != "/" && path.Dir(p) == dir {
			names = append(names, path.Base(p))
		}
	}
	for p := range m.files {
		if path.Dir(p) == dir {
			names = append(names, path.Base(p))
		}
	}
	sort.Strings(names)
	return names
}

func (m *memRemote) List(_ context.Context, dir string) ([]string, error) {
	m.begin()
	defer m.mu.Unlock()
	dir = path.Clean(dir)
	if !m.dirs[dir] {
		return nil, errs.Remote("list", dir, os.ErrNotExist)
	}
	return m.children(dir), nil
}

func (m *memRemote) Rename(_ context.Context, oldpath, newpath string) error {
	m.begin()
	defer m.mu.Unlock()
	oldpath, newpath = path.Clean(oldpath), path.Clean(newpath)
	if !m.exists(oldpath) {
		return errs.Remote("rename", oldpath, os.ErrNotExist)
	}
	if !m.dirs[path.Dir(newpath)] {
		return errs.Remote("rename", oldpath, os.ErrNotExist)
	}
	if data, ok := m.files[oldpath]; ok {
		delete(m.files, oldpath)
		m.files[newpath] = data
		return nil
	}
	prefix := oldpath + "/"
	for p := range m.dirs {
		if p == oldpath || strings.HasPrefix(p, prefix) {
			delete(m.dirs, p)
			m.dirs[newpath+strings.TrimPrefix(p, oldpath)] = true
		}
	}
	for p, data := range m.files {
		if strings.HasPrefix(p, prefix) {
			delete(m.files, p)
			m.files[newpath+strings.TrimPrefix(p, oldpath)] = data
		}
	}
	return nil
}

func (m *memRemote) Delete(_ context.Context, p string) error {
	m.begin()
	defer m.mu.Unlock()
	p = path.Clean(p)
	switch {
	case m.dirs[p]:
		if len(m.children(p)) > 0 {
			return errs.Remote("delete", p, errNotEmpty)
		}
		delete(m.dirs, p)
	case m.exists(p):
		delete(m.files, p)
	default:
		return errs.Remote("delete", p, os.ErrNotExist)
	}
	return nil
}

func (m *memRemote) ReadFile(_ context.Context, p string) ([]byte, error) {
	m.begin()
	defer m.mu.Unlock()
	data, ok := m.files[path.Clean(p)]
	if !ok {
		return nil, errs.Remote("read", p, os.ErrNotExist)
	}
	return append([]byte(nil), data...), nil
}

func (m *memRemote) WriteFile(_ context.Context, p string, data []byte) error {
	m.begin()
	defer m.mu.Unlock()
	p = path.Clean(p)
	if !m.dirs[path.Dir(p)] || m.dirs[p] {
		return errs.Remote("write", p, os.ErrInvalid)
	}
	m.files[p] = append([]byte(nil), data...)
	return nil
}

func (m *memRemote) Mkdir(_ context.Context, dir string) error {
	m.begin()
	defer m.mu.Unlock()
	dir = path.Clean(dir)
	var missing []string
	for p := dir; !m.dirs[p] && p != "."; p = path.Dir(p) {
		if _, isFile := m.files[p]; isFile {
			return errs.Remote("mkdir", dir, os.ErrExist)
		}
		missing = append(missing, p)
	}
	for _, p := range missing {
		m.dirs[p] = true
	}
	return nil
}
