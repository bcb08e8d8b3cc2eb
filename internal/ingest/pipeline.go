// Package ingest tails Codex session transcripts into the store, resuming
// each file from its persisted cursor.
package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/janekbaraniewski/codextracker/internal/core"
	"github.com/janekbaraniewski/codextracker/internal/pricing"
	"github.com/janekbaraniewski/codextracker/internal/store"
)

const homeLabel = "Default"

type Options struct {
	// Workers bounds concurrent file parsing. Zero means GOMAXPROCS.
	Workers int
}

type Pipeline struct {
	store   *store.Store
	workers int
	now     func() time.Time
}

func NewPipeline(st *store.Store, opts Options) *Pipeline {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pipeline{store: st, workers: workers, now: time.Now}
}

// fileJob is one transcript scheduled for parsing.
type fileJob struct {
	path   string
	start  int64
	inode  uint64
	mtime  string
	sniff  bool
	seed   *core.UsageTotals
	model  string
	effort *string
}

// Run ingests every transcript under homePath. Per-file faults become issues
// in the returned stats; only store failures abort the run.
func (p *Pipeline) Run(ctx context.Context, homePath string) (core.IngestStats, error) {
	runID := uuid.NewString()
	started := p.now()
	stats := core.IngestStats{Issues: []core.IngestIssue{}}

	home, err := p.store.GetOrCreateHome(ctx, homePath, homeLabel)
	if err != nil {
		return stats, err
	}
	rules, err := p.store.ListPricingRules(ctx)
	if err != nil {
		return stats, err
	}

	paths, walkIssues := discoverTranscripts(filepath.Join(home.Path, SessionsDir))
	stats.Issues = append(stats.Issues, walkIssues...)
	stats.FilesScanned = len(paths)

	jobs := make([]fileJob, 0, len(paths))
	for _, path := range paths {
		job, ok, err := p.planFile(ctx, home.ID, path, &stats)
		if err != nil {
			return stats, err
		}
		if ok {
			jobs = append(jobs, job)
		}
	}

	results := make([]fileResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			results[i] = parseFile(gctx, job, rules)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return stats, fmt.Errorf("ingest: %w", err)
	}

	var batch store.IngestBatch
	for i, res := range results {
		stats.Issues = append(stats.Issues, res.issues...)
		if res.skipped {
			stats.FilesSkipped++
			continue
		}
		stats.BytesRead += uint64(res.bytesRead)
		batch.Events = append(batch.Events, res.events...)
		batch.Messages = append(batch.Messages, res.messages...)
		batch.Limits = append(batch.Limits, res.limits...)
		batch.Cursors = append(batch.Cursors, res.cursor(home, jobs[i], p.now()))
	}

	inserted, err := p.store.WriteIngestBatch(ctx, home.ID, batch)
	if err != nil {
		return stats, err
	}
	stats.EventsInserted = inserted
	if err := p.store.TouchHome(ctx, home.ID); err != nil {
		return stats, err
	}

	log.Printf("[ingest] run=%s home=%d files=%d skipped=%d events=%d bytes=%d issues=%d took=%s",
		runID, home.ID, stats.FilesScanned, stats.FilesSkipped, stats.EventsInserted,
		stats.BytesRead, len(stats.Issues), p.now().Sub(started).Round(time.Millisecond))
	return stats, nil
}

// planFile decides where parsing of path starts. It returns false when the
// file has nothing new.
func (p *Pipeline) planFile(ctx context.Context, homeID int64, path string, stats *core.IngestStats) (fileJob, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		stats.FilesSkipped++
		stats.Issues = append(stats.Issues, core.IngestIssue{FilePath: path, Message: err.Error()})
		return fileJob{}, false, nil
	}

	job := fileJob{
		path:  path,
		inode: fileInode(info),
		mtime: info.ModTime().UTC().Format(time.RFC3339),
		sniff: needsSniff[strings.ToLower(filepath.Ext(path))],
	}

	cursor, err := p.store.Cursor(ctx, homeID, path)
	if err != nil {
		return fileJob{}, false, err
	}
	resume := cursor != nil && cursor.ByteOffset <= info.Size() && cursor.Inode == job.inode
	if resume {
		job.start = cursor.ByteOffset
	}
	if job.start >= info.Size() {
		stats.FilesSkipped++
		return fileJob{}, false, nil
	}
	if !resume {
		return job, true, nil
	}

	last, err := p.store.LastUsageForSource(ctx, homeID, path)
	if err != nil {
		return fileJob{}, false, err
	}
	if last != nil {
		job.seed = &last.Usage
		job.model = last.Model
		job.effort = last.ReasoningEffort
	}
	if cursor.LastModel != nil {
		job.model = *cursor.LastModel
	}
	if cursor.LastEffort != nil {
		job.effort = cursor.LastEffort
	}
	return job, true, nil
}

func (r fileResult) cursor(home core.Home, job fileJob, now time.Time) store.Cursor {
	c := store.Cursor{
		HomeID:       home.ID,
		HomePath:     home.Path,
		FilePath:     job.path,
		Inode:        job.inode,
		MTime:        job.mtime,
		ByteOffset:   job.start + r.bytesRead,
		LastEventKey: r.lastEventKey,
		UpdatedAt:    core.FormatTimestamp(now),
		LastEffort:   r.effort,
	}
	if r.model != "" {
		c.LastModel = lo.ToPtr(r.model)
	}
	return c
}

// hasPricing reports whether events should be costed while ingesting.
func hasPricing(rules pricing.Rules) bool {
	return len(rules) > 0
}
