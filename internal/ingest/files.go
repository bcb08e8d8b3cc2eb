package ingest

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/janekbaraniewski/codextracker/internal/core"
)

// SessionsDir is where Codex writes transcripts inside a home.
const SessionsDir = "sessions"

var transcriptExts = map[string]bool{
	".jsonl":  true,
	".ndjson": true,
	".log":    true,
}

// needsSniff lists extensions also used for non-transcript logs.
var needsSniff = map[string]bool{".log": true}

const sniffLines = 5

// isTranscriptPath reports whether path has a recognized transcript extension.
func isTranscriptPath(path string) bool {
	return transcriptExts[strings.ToLower(filepath.Ext(path))]
}

// discoverTranscripts lists transcript candidates under root in lexical
// order. A missing root yields no files. Any other walk fault becomes an
// issue and the walk continues past it.
func discoverTranscripts(root string) ([]string, []core.IngestIssue) {
	var (
		files  []string
		issues []core.IngestIssue
	)
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			issues = append(issues, core.IngestIssue{FilePath: path, Message: err.Error()})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !isTranscriptPath(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, issues
}

// looksLikeJSONLines reports whether the first non-blank line among the
// leading lines of path starts a JSON object.
func looksLikeJSONLines(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for i := 0; i < sniffLines; i++ {
		line, err := r.ReadString('\n')
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return strings.HasPrefix(trimmed, "{"), nil
		}
		if err != nil {
			return false, nil
		}
	}
	return false, nil
}
