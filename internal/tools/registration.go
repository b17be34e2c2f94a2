package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/filepulse/sftp-mcp-server/internal/errs"
	"github.com/filepulse/sftp-mcp-server/internal/logging"
	"github.com/filepulse/sftp-mcp-server/internal/metrics"
)

// Tool names as exposed over MCP.
const (
	ToolRetrieveObjects = "retrieve-objects"
	ToolRenameObject    = "rename-object"
	ToolDeleteObject    = "delete-object"
	ToolDownloadFile    = "download-file"
	ToolCreateDirectory = "create-directory"
	ToolWriteToFile     = "write-to-file"
)

// HandlerFunc implements one tool against the dispatcher. A returned error
// is turned into an error result by the registration wrapper.
type HandlerFunc func(ctx context.Context, d *Dispatcher, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

// ToolConfig describes one MCP tool.
type ToolConfig struct {
	Name        string
	Description string
	Options     []mcp.ToolOption
	Handler     HandlerFunc
}

// Tool builds the MCP tool definition.
func (c ToolConfig) Tool() mcp.Tool {
	opts := append([]mcp.ToolOption{mcp.WithDescription(c.Description)}, c.Options...)
	return mcp.NewTool(c.Name, opts...)
}

func pathParam(desc string) mcp.ToolOption {
	return mcp.WithString("path", mcp.Required(), mcp.Description(desc))
}

// ToolConfigs returns the six SFTP tools.
func ToolConfigs() []ToolConfig {
	return []ToolConfig{
		{
			Name:        ToolRetrieveObjects,
			Description: "Retrieves a list of files and folders from the specified path.",
			Options: []mcp.ToolOption{
				pathParam("The path to the directory."),
				mcp.WithReadOnlyHintAnnotation(true),
			},
			Handler: handleRetrieveObjects,
		},
		{
			Name:        ToolRenameObject,
			Description: "Renames a file or folder from oldpath to newpath.",
			Options: []mcp.ToolOption{
				mcp.WithString("oldpath", mcp.Required(), mcp.Description("The current path of the file or folder.")),
				mcp.WithString("newpath", mcp.Required(), mcp.Description("The new path for the file or folder.")),
			},
			Handler: handleRenameObject,
		},
		{
			Name:        ToolDeleteObject,
			Description: "Deletes a file or an empty folder.",
			Options: []mcp.ToolOption{
				pathParam("The path to the file or folder."),
				mcp.WithDestructiveHintAnnotation(true),
			},
			Handler: handleDeleteObject,
		},
		{
			Name:        ToolDownloadFile,
			Description: "Downloads a file from the specified path. The whole file is returned in one response.",
			Options: []mcp.ToolOption{
				pathParam("The path to the file."),
				mcp.WithReadOnlyHintAnnotation(true),
			},
			Handler: handleDownloadFile,
		},
		{
			Name:        ToolCreateDirectory,
			Description: "Creates a directory. Missing parent directories are created too.",
			Options: []mcp.ToolOption{
				pathParam("Path of the directory to create."),
			},
			Handler: handleCreateDirectory,
		},
		{
			Name:        ToolWriteToFile,
			Description: "Writes content to a file at the specified path, replacing any existing content.",
			Options: []mcp.ToolOption{
				pathParam("The path to the file."),
				mcp.WithString("content", mcp.Required(), mcp.Description("The content to write to the file.")),
			},
			Handler: handleWriteToFile,
		},
	}
}

// NewServer creates an MCP server with every tool registered against d.
func NewServer(name, version string, d *Dispatcher) (*server.MCPServer, error) {
	s := server.NewMCPServer(name, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	if err := RegisterTools(s, d, ToolConfigs()); err != nil {
		return nil, err
	}
	return s, nil
}

// RegisterTools registers every config on s.
func RegisterTools(s *server.MCPServer, d *Dispatcher, configs []ToolConfig) error {
	seen := make(map[string]bool, len(configs))
	for _, c := range configs {
		if err := validate(c, seen); err != nil {
			return errors.Wrapf(err, "failed to register tool %q", c.Name)
		}
		s.AddTool(c.Tool(), Wrap(c, d))
		logging.Debug("registered tool", zap.String("name", c.Name))
	}
	return nil
}

func validate(c ToolConfig, seen map[string]bool) error {
	if c.Name == "" {
		return errors.New("tool name is empty")
	}
	if c.Handler == nil {
		return errors.New("tool has no handler")
	}
	if seen[c.Name] {
		return errors.New("duplicate tool name")
	}
	seen[c.Name] = true
	return nil
}

// Wrap adapts a HandlerFunc to mcp-go. Each call gets a request ID, a log
// line and metrics; errors become error results so one failed call never
// surfaces as a protocol error.
func Wrap(c ToolConfig, d *Dispatcher) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = logging.WithRequestID(ctx, "")
		logger := logging.WithContext(ctx).With(zap.String("tool", c.Name))

		start := time.Now()
		res, err := c.Handler(ctx, d, req)
		elapsed := time.Since(start)
		metrics.RecordToolCall(c.Name, elapsed, err == nil)

		if err != nil {
			logger.Warn("tool call failed",
				zap.String("kind", string(errs.KindOf(err))),
				zap.Duration("duration", elapsed),
				zap.Error(err))
			return ErrorResult(err), nil
		}
		logger.Info("tool call completed", zap.Duration("duration", elapsed))
		return res, nil
	}
}

// ErrorResult renders err as a tool error result, prefixed by its kind.
func ErrorResult(err error) *mcp.CallToolResult {
	if kind := errs.KindOf(err); kind != "" {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", kind, err))
	}
	return mcp.NewToolResultError(err.Error())
}

func handleRetrieveObjects(ctx context.Context, d *Dispatcher, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return nil, err
	}
	names, err := d.RetrieveObjects(ctx, path)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	body, err := json.Marshal(names)
	if err != nil {
		return nil, fmt.Errorf("encode listing: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}

func handleRenameObject(ctx context.Context, d *Dispatcher, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	oldpath, err := req.RequireString("oldpath")
	if err != nil {
		return nil, err
	}
	newpath, err := req.RequireString("newpath")
	if err != nil {
		return nil, err
	}
	ok, err := d.RenameObject(ctx, oldpath, newpath)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(fmt.Sprintf("%t", ok)), nil
}

func handleDeleteObject(ctx context.Context, d *Dispatcher, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return nil, err
	}
	msg, err := d.DeleteObject(ctx, path)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(msg), nil
}

func handleDownloadFile(ctx context.Context, d *Dispatcher, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return nil, err
	}
	data, err := d.DownloadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	metrics.RecordDownload(int64(len(data)))
	return contentResult(path, data), nil
}

// contentResult returns UTF-8 content as text and anything else as a
// base64 blob resource.
func contentResult(path string, data []byte) *mcp.CallToolResult {
	if utf8.Valid(data) {
		return mcp.NewToolResultText(string(data))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(fmt.Sprintf("binary file %s (%d bytes)", path, len(data))),
			mcp.NewEmbeddedResource(mcp.BlobResourceContents{
				URI:      "sftp://" + path,
				MIMEType: "application/octet-stream",
				Blob:     base64.StdEncoding.EncodeToString(data),
			}),
		},
	}
}

func handleCreateDirectory(ctx context.Context, d *Dispatcher, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return nil, err
	}
	msg, err := d.CreateDirectory(ctx, path)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(msg), nil
}

func handleWriteToFile(ctx context.Context, d *Dispatcher, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return nil, err
	}
	content, err := req.RequireString("content")
	if err != nil {
		return nil, err
	}
	msg, err := d.WriteToFile(ctx, path, content)
	if err != nil {
		return nil, err
	}
	metrics.RecordUpload(int64(len(content)))
	return mcp.NewToolResultText(msg), nil
}
