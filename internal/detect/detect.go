// Package detect finds Codex homes on the workstation.
package detect

import (
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
)

// Codex keeps its state under ~/.codex unless CODEX_HOME points elsewhere:
//   - sessions/<year>/<month>/<day>/rollout-*.jsonl: per-session event logs
//   - config.toml, auth.json, history.jsonl: not read here
const sessionsDir = "sessions"

// Candidate is a directory that looks like a Codex home.
type Candidate struct {
	Path        string `json:"path"`
	Origin      string `json:"origin"`
	HasSessions bool   `json:"has_sessions"`
	BinaryPath  string `json:"binary_path,omitempty"`
}

const (
	OriginEnv     = "CODEX_HOME"
	OriginDefault = "default"
)

// CodexHomes returns existing Codex homes from $CODEX_HOME and ~/.codex, in
// that order and without duplicates.
func CodexHomes() []Candidate {
	var candidates []Candidate
	if env := strings.TrimSpace(os.Getenv("CODEX_HOME")); env != "" {
		candidates = append(candidates, Candidate{Path: filepath.Clean(env), Origin: OriginEnv})
	}
	if home := homeDir(); home != "" {
		candidates = append(candidates, Candidate{Path: filepath.Join(home, ".codex"), Origin: OriginDefault})
	}

	bin := findBinary("codex")
	found := lo.Filter(lo.UniqBy(candidates, func(c Candidate) string { return c.Path }), func(c Candidate, _ int) bool {
		return dirExists(c.Path)
	})
	for i := range found {
		found[i].HasSessions = dirExists(filepath.Join(found[i].Path, sessionsDir))
		found[i].BinaryPath = bin
		log.Printf("[detect] codex home=%s origin=%s sessions=%v", found[i].Path, found[i].Origin, found[i].HasSessions)
	}
	return found
}

func homeDir() string {
	h, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return h
}

// findBinary returns the full path of name on PATH, or "".
func findBinary(name string) string {
	path, err := exec.LookPath(name)
	if err != nil {
		return ""
	}
	return path
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
