// Package file provides the filesystem tools: read, write, edit, glob,
// grep, and file_status.
package file

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/quillsh/quill/internal/tools"
)

const (
	defaultReadLimit = 2000
	maxGrepMatches   = 100
)

// Register adds the file tools to the registry.
func Register(reg *tools.Registry) {
	reg.MustRegister(&tools.Tool{
		Name:        "read",
		Description: "Read a text file with line numbers",
		Params: []tools.Parameter{
			{Name: "path", Type: "string", Description: "File to read", Required: true},
			{Name: "offset", Type: "integer", Description: "First line to read (1-based)", Default: float64(1)},
			{Name: "limit", Type: "integer", Description: "Maximum number of lines", Default: float64(defaultReadLimit)},
		},
		Func: readFile,
	})

	reg.MustRegister(&tools.Tool{
		Name:        "write",
		Description: "Write content to a file, creating it and any parent directories",
		Params: []tools.Parameter{
			{Name: "path", Type: "string", Description: "File to write", Required: true},
			{Name: "content", Type: "string", Description: "Full file content", Required: true},
		},
		Func: writeFile,
	})

	reg.MustRegister(&tools.Tool{
		Name:        "edit",
		Description: "Replace text in a file",
		Params: []tools.Parameter{
			{Name: "path", Type: "string", Description: "File to edit", Required: true},
			{Name: "old", Type: "string", Description: "Text to replace", Required: true},
			{Name: "new", Type: "string", Description: "Replacement text", Required: true},
			{Name: "all", Type: "boolean", Description: "Replace every occurrence instead of the first", Default: false},
		},
		Func: editFile,
	})

	reg.MustRegister(&tools.Tool{
		Name:        "glob",
		Description: "List files matching a glob pattern",
		Params: []tools.Parameter{
			{Name: "pattern", Type: "string", Description: "Glob pattern, e.g. cmd/*/*.go", Required: true},
		},
		Func: globFiles,
	})

	reg.MustRegister(&tools.Tool{
		Name:        "grep",
		Description: "Search file contents for a regular expression",
		Params: []tools.Parameter{
			{Name: "pattern", Type: "string", Description: "Regular expression to search for", Required: true},
			{Name: "path", Type: "string", Description: "Directory or file to search", Default: "."},
			{Name: "include", Type: "string", Description: "Only search files whose name matches this glob"},
		},
		Func: grepFiles,
	})

	reg.MustRegister(&tools.Tool{
		Name:        "file_status",
		Description: "Show size, permissions, and modification time of a file",
		Params: []tools.Parameter{
			{Name: "path", Type: "string", Description: "File to inspect", Required: true},
		},
		Func: fileStatus,
	})
}

func readFile(ctx context.Context, args map[string]any) (string, error) {
	path := tools.StringArg(args, "path", "")
	offset := tools.IntArg(args, "offset", 1)
	limit := tools.IntArg(args, "limit", defaultReadLimit)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	lines := strings.Split(string(data), "\n")
	total := len(lines)
	if offset < 1 {
		offset = 1
	}
	if offset > total {
		return "", fmt.Errorf("offset %d past end of file (%d lines)", offset, total)
	}

	end := offset + limit - 1
	if limit <= 0 || end > total {
		end = total
	}

	var b strings.Builder
	fmt.Fprintf(&b, "path: %s  lines: %d-%d/%d\n", path, offset, end, total)
	for i := offset; i <= end; i++ {
		fmt.Fprintf(&b, "%6d  %s\n", i, lines[i-1])
	}
	return b.String(), nil
}

func writeFile(ctx context.Context, args map[string]any) (string, error) {
	path := tools.StringArg(args, "path", "")
	content := tools.StringArg(args, "content", "")

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create directory for %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return fmt.Sprintf("Write %s success.", path), nil
}

func editFile(ctx context.Context, args map[string]any) (string, error) {
	path := tools.StringArg(args, "path", "")
	old := tools.StringArg(args, "old", "")
	replacement := tools.StringArg(args, "new", "")
	all := tools.BoolArg(args, "all", false)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	content := string(data)

	count := strings.Count(content, old)
	if count == 0 {
		return "", fmt.Errorf("'old' text not found in %s", path)
	}

	replaced := 1
	if all {
		content = strings.ReplaceAll(content, old, replacement)
		replaced = count
	} else {
		content = strings.Replace(content, old, replacement, 1)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return fmt.Sprintf("Edit %s success: replaced %d occurrence(s).", path, replaced), nil
}

func globFiles(ctx context.Context, args map[string]any) (string, error) {
	pattern := tools.StringArg(args, "pattern", "")

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("bad glob pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return "no files match " + pattern, nil
	}
	sort.Strings(matches)
	return strings.Join(matches, "\n"), nil
}

func grepFiles(ctx context.Context, args map[string]any) (string, error) {
	pattern := tools.StringArg(args, "pattern", "")
	root := tools.StringArg(args, "path", ".")
	include := tools.StringArg(args, "include", "")

	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("bad regular expression %q: %w", pattern, err)
	}

	var matches []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if include != "" {
			ok, _ := filepath.Match(include, d.Name())
			if !ok {
				return nil
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		data, err := os.ReadFile(path)
		if err != nil || looksBinary(data) {
			return nil
		}
		for i, line := range strings.Split(string(data), "\n") {
			if re.MatchString(line) {
				matches = append(matches, fmt.Sprintf("%s:%d:%s", path, i+1, line))
				if len(matches) >= maxGrepMatches {
					return errTooMany
				}
			}
		}
		return nil
	})
	if err != nil && err != errTooMany {
		return "", fmt.Errorf("search %s: %w", root, err)
	}

	if len(matches) == 0 {
		return "no matches for " + pattern, nil
	}
	out := strings.Join(matches, "\n")
	if err == errTooMany {
		out += fmt.Sprintf("\n... stopped after %d matches", maxGrepMatches)
	}
	return out, nil
}

// errTooMany stops the walk once the match cap is reached.
var errTooMany = fmt.Errorf("too many matches")

// looksBinary reports whether the leading bytes contain a NUL.
func looksBinary(data []byte) bool {
	probe := data
	if len(probe) > 512 {
		probe = probe[:512]
	}
	return bytes.IndexByte(probe, 0) >= 0
}

func fileStatus(ctx context.Context, args map[string]any) (string, error) {
	path := tools.StringArg(args, "path", "")

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	kind := "file"
	if info.IsDir() {
		kind = "directory"
	}
	return fmt.Sprintf("%s: %s, %d bytes, mode %s, modified %s",
		path, kind, info.Size(), info.Mode(), info.ModTime().Format("2006-01-02 15:04:05")), nil
}
