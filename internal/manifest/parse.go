package manifest

import (
	"bufio"
	"io"
	"strings"
)

// Kind tags a manifest entry
type Kind int

const (
	File Kind = iota
	Directory
)

func (k Kind) String() string {
	if k == Directory {
		return "directory"
	}
	return "file"
}

// Entry is one path declared by a manifest, relative to the manifest's directory
type Entry struct {
	Path string // slash separated
	Kind Kind
}

const tabWidth = 4

type frame struct {
	indent int
	name   string
}

// Parse reads an indentation-nested manifest. Each line names one file or
// directory; directories end with a path separator. A line belongs to the
// nearest preceding directory line with a shallower indent.
func Parse(r io.Reader) ([]Entry, error) {
	var (
		entries []Entry
		stack   []frame
	)

	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		indent, rest := measureIndent(line)

		for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}

		isDir := strings.HasSuffix(rest, "/") || strings.HasSuffix(rest, "\\")
		name := strings.Trim(strings.ReplaceAll(rest, "\\", "/"), "/")
		if name == "" {
			continue
		}

		parts := make([]string, 0, len(stack)+1)
		for _, f := range stack {
			parts = append(parts, f.name)
		}
		parts = append(parts, name)

		entry := Entry{Path: strings.Join(parts, "/"), Kind: File}
		if isDir {
			entry.Kind = Directory
			stack = append(stack, frame{indent: indent, name: name})
		}
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func measureIndent(line string) (int, string) {
	width := 0
	for i, r := range line {
		switch r {
		case ' ':
			width++
		case '\t':
			width += tabWidth
		default:
			return width, line[i:]
		}
	}
	return width, ""
}

// Files returns only the file entries
func Files(entries []Entry) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Kind == File {
			out = append(out, e)
		}
	}
	return out
}
