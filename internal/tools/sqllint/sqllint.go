// Package sqllint checks that every inline SQL constant starts with a
// unique "--sql <uuid>" audit marker, the format infra.SQLRunner requires.
package sqllint

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	statementPattern = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with|create|alter|drop)\b`)
	markerPattern    = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

// Violation is one offending constant.
type Violation struct {
	File    string
	Name    string
	Line    int
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s:%d %s (%s)", v.File, v.Line, v.Message, v.Name)
}

type markerSite struct {
	name string
	pos  token.Position
}

// Lint walks targets (files or directories) and reports constants whose SQL
// lacks a valid marker or reuses a marker seen elsewhere.
func Lint(targets ...string) ([]Violation, error) {
	if len(targets) == 0 {
		targets = []string{"."}
	}
	var files []string
	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if filepath.Ext(target) == ".go" {
				files = append(files, target)
			}
			continue
		}
		err = filepath.WalkDir(target, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if path != target && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor" || name == "testdata") {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) == ".go" && !strings.HasSuffix(path, "_test.go") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)

	seen := make(map[string]markerSite)
	var violations []Violation
	for _, path := range files {
		vs, err := lintFile(path, seen)
		if err != nil {
			return nil, err
		}
		violations = append(violations, vs...)
	}
	return violations, nil
}

func lintFile(path string, seen map[string]markerSite) ([]Violation, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.SkipObjectResolution)
	if err != nil {
		return nil, err
	}
	var violations []Violation
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for i, value := range vs.Values {
			bl, ok := value.(*ast.BasicLit)
			if !ok || bl.Kind != token.STRING {
				continue
			}
			raw, err := unquote(bl.Value)
			if err != nil || !statementPattern.MatchString(raw) {
				continue
			}
			name := specName(vs, i)
			pos := fset.Position(bl.Pos())
			marker := firstLine(raw)
			if !markerPattern.MatchString(marker) {
				// plain prose that merely mentions a keyword is not SQL
				if !strings.HasPrefix(marker, "--") && !looksLikeSQL(raw) {
					continue
				}
				violations = append(violations, Violation{File: path, Line: pos.Line, Name: name, Message: "missing or invalid --sql <uuid> marker"})
				continue
			}
			if prev, dup := seen[marker]; dup {
				violations = append(violations, Violation{
					File:    path,
					Line:    pos.Line,
					Name:    name,
					Message: fmt.Sprintf("marker already used by %s at %s:%d", prev.name, prev.pos.Filename, prev.pos.Line),
				})
				continue
			}
			seen[marker] = markerSite{name: name, pos: pos}
		}
		return true
	})
	return violations, nil
}

func looksLikeSQL(raw string) bool {
	lower := strings.ToLower(strings.TrimSpace(raw))
	for _, prefix := range []string{"select ", "insert ", "update ", "delete ", "with ", "create ", "alter ", "drop "} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func specName(vs *ast.ValueSpec, i int) string {
	if i < len(vs.Names) && vs.Names[i] != nil {
		return vs.Names[i].Name
	}
	return "_"
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) >= 2 && v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}
