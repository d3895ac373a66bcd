package tools

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"lincona/internal/session"
)

const regexCacheSize = 128

var (
	regexCache     *lru.Cache[string, *regexp.Regexp]
	regexCacheOnce sync.Once
)

func compiledPattern(pattern string) (*regexp.Regexp, error) {
	regexCacheOnce.Do(func() {
		regexCache, _ = lru.New[string, *regexp.Regexp](regexCacheSize)
	})
	if re, ok := regexCache.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCache.Add(pattern, re)
	return re, nil
}

type grepArgs struct {
	Pattern string   `json:"pattern"`
	Path    string   `json:"path"`
	Include []string `json:"include"`
	Limit   int      `json:"limit"`
}

type grepMatch struct {
	LineNum int    `json:"line_num"`
	Line    string `json:"line"`
}

type grepFileResult struct {
	File    string      `json:"file"`
	Matches []grepMatch `json:"matches"`
}

func grepFilesRegistration() Registration {
	return Registration{
		Name:        "grep_files",
		Description: "Recursive regex search rooted at a path, filtered by include globs, capped at a hit limit.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pattern": map[string]any{"type": "string", "description": "Regular expression (RE2 syntax)."},
				"path":    map[string]any{"type": "string", "description": "Root path to search."},
				"include": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Glob filters for filenames."},
				"limit":   map[string]any{"type": "integer", "minimum": 1, "description": "Maximum total hits."},
			},
			"required": []string{"pattern", "path", "limit"},
		},
		Handler: grepFilesHandler,
	}
}

func grepFilesHandler(ctx *Context, rawArgs json.RawMessage) (session.ToolResult, error) {
	var args grepArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return failResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.Limit < 1 {
		return failResult(invalidFieldError("limit", "must be >= 1").Error()), nil
	}

	re, err := compiledPattern(args.Pattern)
	if err != nil {
		return failResult(invalidFieldError("pattern", err.Error()).Error()), nil
	}

	root, err := ctx.Boundary.Resolve(args.Path)
	if err != nil {
		return failResult(err.Error()), nil
	}

	var results []grepFileResult
	hits := 0

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if hits >= args.Limit {
			return fs.SkipAll
		}
		if d.IsDir() {
			return nil
		}
		if len(args.Include) > 0 && !matchesAnyGlob(args.Include, d.Name()) {
			return nil
		}

		fileMatches, err := grepOneFile(path, re, args.Limit-hits)
		if err != nil {
			return nil // skip unreadable/binary files silently
		}
		if len(fileMatches) == 0 {
			return nil
		}
		hits += len(fileMatches)
		results = append(results, grepFileResult{File: path, Matches: fileMatches})
		return nil
	})
	if walkErr != nil {
		return failResult(walkErr.Error()), nil
	}

	return okResult("", results, hits >= args.Limit), nil
}

func grepOneFile(path string, re *regexp.Regexp, remaining int) ([]grepMatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if isLikelyBinary(f) {
		return nil, fmt.Errorf("binary file")
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}

	var matches []grepMatch
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() && len(matches) < remaining {
		lineNum++
		line := scanner.Bytes()
		if !utf8.Valid(line) {
			return nil, fmt.Errorf("non-utf8 file")
		}
		if re.Match(line) {
			matches = append(matches, grepMatch{LineNum: lineNum, Line: string(line)})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

func isLikelyBinary(f *os.File) bool {
	buf := make([]byte, 8000)
	n, _ := f.Read(buf)
	return bytes.IndexByte(buf[:n], 0) != -1
}

func matchesAnyGlob(globs []string, name string) bool {
	for _, g := range globs {
		if ok, err := filepath.Match(g, name); err == nil && ok {
			return true
		}
	}
	return false
}
