// Package remote holds the single SFTP session the server is built around.
//
// A Session is opened once at startup and closed once at shutdown. Every
// remote operation goes through it and is serialized by its mutex, so tool
// calls dispatched concurrently never interleave on the transport.
package remote

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"go.uber.org/zap"

	"github.com/filepulse/sftp-mcp-server/internal/errs"
	"github.com/filepulse/sftp-mcp-server/internal/logging"
	"github.com/filepulse/sftp-mcp-server/internal/metrics"
)

// Session is the process-wide SFTP session.
type Session struct {
	mu     sync.Mutex
	client *sftp.Client
	conn   io.Closer // SSH transport under client; nil when not owned
	err    error     // recorded connection failure

	closeOnce sync.Once
	closeErr  error
}

// New wraps an already established SFTP client. conn, if non-nil, is closed
// after the client when the session is closed.
func New(client *sftp.Client, conn io.Closer) *Session {
	s := &Session{client: client, conn: conn}
	metrics.SetSessionConnected(s.Connected())
	return s
}

// Disconnected returns a session that records cause and refuses every
// operation.
func Disconnected(cause error) *Session {
	metrics.SetSessionConnected(false)
	return &Session{err: cause}
}

// Connected reports whether the session holds a client and no connection
// error was recorded. It does not probe the server.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil && s.err == nil
}

// Err returns the recorded connection error, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close releases the SFTP client and the SSH transport. Only the first call
// does any work; later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		var closeErrs []error
		if s.client != nil {
			if err := s.client.Close(); err != nil && !errors.Is(err, io.EOF) {
				closeErrs = append(closeErrs, err)
			}
		}
		if s.conn != nil {
			if err := s.conn.Close(); err != nil && !errors.Is(err, io.EOF) {
				closeErrs = append(closeErrs, err)
			}
		}
		s.client = nil
		s.conn = nil
		s.closeErr = errors.Join(closeErrs...)
		metrics.SetSessionConnected(false)
	})
	return s.closeErr
}

// do runs fn against the client while holding the session lock.
func (s *Session) do(ctx context.Context, op, path string, fn func(c *sftp.Client) error) error {
	if err := ctx.Err(); err != nil {
		return errs.Remote(op, path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil || s.err != nil {
		return errs.NotConnected(s.err)
	}
	if err := ctx.Err(); err != nil {
		return errs.Remote(op, path, err)
	}

	start := time.Now()
	err := fn(s.client)
	metrics.RecordRemoteOperation(op, time.Since(start), err == nil)
	if err != nil {
		logging.WithContext(ctx).Debug("remote operation failed",
			zap.String("op", op),
			zap.String("path", path),
			zap.Error(err))
		return errs.Remote(op, path, err)
	}
	return nil
}

// List returns the names of the entries in dir, in the order the server
// reports them.
func (s *Session) List(ctx context.Context, dir string) ([]string, error) {
	var names []string
	err := s.do(ctx, "list", dir, func(c *sftp.Client) error {
		infos, err := c.ReadDir(dir)
		if err != nil {
			return err
		}
		names = make([]string, 0, len(infos))
		for _, fi := range infos {
			names = append(names, fi.Name())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Rename moves oldpath to newpath.
func (s *Session) Rename(ctx context.Context, oldpath, newpath string) error {
	return s.do(ctx, "rename", oldpath, func(c *sftp.Client) error {
		return c.Rename(oldpath, newpath)
	})
}

// Mkdir creates dir along with any missing parents. It succeeds if dir is
// already a directory and fails if dir or a parent is not one.
func (s *Session) Mkdir(ctx context.Context, dir string) error {
	return s.do(ctx, "mkdir", dir, func(c *sftp.Client) error {
		return c.MkdirAll(dir)
	})
}

// Open returns a read handle on an existing file. The caller must close it.
func (s *Session) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	var f *sftp.File
	err := s.do(ctx, "open", path, func(c *sftp.Client) error {
		var err error
		f, err = c.Open(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Create opens path for writing, creating or truncating it. The caller must
// write the full content and close the handle.
func (s *Session) Create(ctx context.Context, path string) (io.WriteCloser, error) {
	var f *sftp.File
	err := s.do(ctx, "create", path, func(c *sftp.Client) error {
		var err error
		f, err = c.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
		return err
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ReadFile reads the whole file into memory. There is no size limit.
func (s *Session) ReadFile(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := s.do(ctx, "read", path, func(c *sftp.Client) error {
		f, err := c.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		data, err = io.ReadAll(f)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// WriteFile replaces the content of path with data. The handle is closed
// before WriteFile returns and a failed close is reported.
func (s *Session) WriteFile(ctx context.Context, path string, data []byte) error {
	return s.do(ctx, "write", path, func(c *sftp.Client) error {
		f, err := c.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
		if err != nil {
			return err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	})
}
