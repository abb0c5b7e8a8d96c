package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const maxListEntries = 1000

var errStopWalk = errors.New("stop walk")

// skipped reports whether a slash-separated path crosses a skipped directory.
func skipped(path string) bool {
	for _, part := range strings.Split(path, "/") {
		if skipDirs[part] {
			return true
		}
	}
	return false
}

type readFileInput struct {
	Path   string `json:"path"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
}

type readFileOutput struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Lines     int    `json:"lines"`
	Truncated bool   `json:"truncated"`
}

// NewReadFileTool reads text files under roots, with optional line offset and limit.
func NewReadFileTool(roots Roots) *Func {
	spec := ToolSpec{
		Name:        "read_file",
		Description: "Read a text file. Returns its content with optional line offset and limit.",
		Parameters: map[string]ParamSpec{
			"path":   {Type: "string", Description: "Path to the file, absolute or relative to the first root", Required: true},
			"offset": {Type: "integer", Description: "Line offset (0-based) to start reading from"},
			"limit":  {Type: "integer", Description: "Maximum number of lines to return"},
		},
	}
	return NewFunc(spec, func(_ context.Context, in readFileInput) (any, error) {
		if in.Path == "" {
			return nil, fmt.Errorf("read_file: path is required")
		}
		path, err := roots.Resolve(in.Path)
		if err != nil {
			return nil, fmt.Errorf("read_file: %w", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read_file: %w", err)
		}
		if bytes.IndexByte(data[:min(len(data), 512)], 0) >= 0 {
			return nil, fmt.Errorf("read_file: %s is a binary file", in.Path)
		}

		lines := strings.Split(string(data), "\n")
		total := len(lines)
		if in.Offset > 0 {
			lines = lines[min(in.Offset, len(lines)):]
		}
		truncated := false
		if in.Limit > 0 && in.Limit < len(lines) {
			lines = lines[:in.Limit]
			truncated = true
		}
		return readFileOutput{Path: path, Content: strings.Join(lines, "\n"), Lines: total, Truncated: truncated}, nil
	})
}

type listFilesInput struct {
	Path    string `json:"path"`
	Pattern string `json:"pattern"`
}

type fileEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // "file" or "dir"
	Size int64  `json:"size"`
}

type listFilesOutput struct {
	Root      string      `json:"root"`
	Entries   []fileEntry `json:"entries"`
	Total     int         `json:"total"`
	Truncated bool        `json:"truncated"`
}

// NewListFilesTool lists files under a directory, filtered by a doublestar
// glob such as "**/*.go".
func NewListFilesTool(roots Roots) *Func {
	spec := ToolSpec{
		Name:        "list_files",
		Description: `List files under a directory. The optional pattern is a glob supporting "**" (e.g. "**/*.md"); without it only direct children are listed.`,
		Parameters: map[string]ParamSpec{
			"path":    {Type: "string", Description: "Directory to list (default: first root)"},
			"pattern": {Type: "string", Description: "Glob pattern relative to path"},
		},
	}
	return NewFunc(spec, func(_ context.Context, in listFilesInput) (any, error) {
		dir, err := roots.Resolve(in.Path)
		if err != nil {
			return nil, fmt.Errorf("list_files: %w", err)
		}
		pattern := in.Pattern
		if pattern == "" {
			pattern = "*"
		}
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("list_files: invalid pattern %q", pattern)
		}

		out := listFilesOutput{Root: dir, Entries: []fileEntry{}}
		err = doublestar.GlobWalk(os.DirFS(dir), pattern, func(path string, d fs.DirEntry) error {
			if skipped(path) {
				return nil
			}
			if len(out.Entries) >= maxListEntries {
				out.Truncated = true
				return errStopWalk
			}
			e := fileEntry{Path: path, Type: "file"}
			if d.IsDir() {
				e.Type = "dir"
			} else if info, err := d.Info(); err == nil {
				e.Size = info.Size()
			}
			out.Entries = append(out.Entries, e)
			return nil
		})
		if err != nil && !errors.Is(err, errStopWalk) {
			return nil, fmt.Errorf("list_files: %w", err)
		}
		out.Total = len(out.Entries)
		return out, nil
	})
}

type writeFileInput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Append  bool   `json:"append"`
}

type writeFileOutput struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
}

// NewWriteFileTool writes files under roots, creating parent directories.
func NewWriteFileTool(roots Roots) *Func {
	spec := ToolSpec{
		Name:        "write_file",
		Description: "Write content to a file, creating parent directories. Overwrites unless append is true.",
		Parameters: map[string]ParamSpec{
			"path":    {Type: "string", Description: "Path to the file", Required: true},
			"content": {Type: "string", Description: "Content to write", Required: true},
			"append":  {Type: "boolean", Description: "Append instead of overwriting"},
		},
	}
	return NewFunc(spec, func(_ context.Context, in writeFileInput) (any, error) {
		if in.Path == "" {
			return nil, fmt.Errorf("write_file: path is required")
		}
		path, err := roots.Resolve(in.Path)
		if err != nil {
			return nil, fmt.Errorf("write_file: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("write_file: %w", err)
		}
		flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		if in.Append {
			flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		}
		f, err := os.OpenFile(path, flags, 0o644)
		if err != nil {
			return nil, fmt.Errorf("write_file: %w", err)
		}
		n, err := f.WriteString(in.Content)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("write_file: %w", err)
		}
		return writeFileOutput{Path: path, Bytes: n}, nil
	})
}
