package ingest

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/janekbaraniewski/codextracker/internal/core"
	"github.com/janekbaraniewski/codextracker/internal/parsers"
	"github.com/janekbaraniewski/codextracker/internal/pricing"
	"github.com/janekbaraniewski/codextracker/internal/usage"
)

const cancelCheckInterval = 1024

type fileResult struct {
	skipped      bool
	bytesRead    int64
	events       []core.UsageEvent
	messages     []core.MessageEvent
	limits       []core.UsageLimitSnapshot
	issues       []core.IngestIssue
	lastEventKey *string
	model        string
	effort       *string
}

// parseFile reads job.path from job.start. Only complete lines are consumed,
// except a final unterminated line that already parses as a JSON object.
func parseFile(ctx context.Context, job fileJob, rules pricing.Rules) fileResult {
	res := fileResult{model: job.model, effort: job.effort}

	if job.sniff {
		ok, err := looksLikeJSONLines(job.path)
		if err != nil {
			res.skipped = true
			res.issues = append(res.issues, core.IngestIssue{FilePath: job.path, Message: err.Error()})
			return res
		}
		if !ok {
			res.skipped = true
			return res
		}
	}

	f, err := os.Open(job.path)
	if err != nil {
		res.skipped = true
		res.issues = append(res.issues, core.IngestIssue{FilePath: job.path, Message: err.Error()})
		return res
	}
	defer f.Close()
	if _, err := f.Seek(job.start, io.SeekStart); err != nil {
		res.skipped = true
		res.issues = append(res.issues, core.IngestIssue{FilePath: job.path, Message: err.Error()})
		return res
	}

	lc := parsers.LineContext{
		Source:    job.path,
		SessionID: core.SessionIDFromSource(job.path),
		Model:     job.model,
		Effort:    job.effort,
	}
	costed := hasPricing(rules)
	prev := job.seed
	reader := bufio.NewReader(f)

	for n := 0; ; n++ {
		if n%cancelCheckInterval == 0 && ctx.Err() != nil {
			break
		}
		raw, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			res.issues = append(res.issues, core.IngestIssue{FilePath: job.path, Message: err.Error()})
			break
		}
		complete := err == nil
		text := strings.TrimRight(raw, "\r\n")

		line, ok := parsers.ParseLine(text, lc)
		if !complete && !ok {
			// The unterminated tail may still be mid-write.
			break
		}
		res.bytesRead += int64(len(raw))

		if ok {
			lc.Model, lc.Effort = line.Model, line.Effort
			if ev := line.Usage; ev != nil {
				delta := usage.Delta(prev, ev.Usage)
				if costed {
					ev.CostUSD = rules.Cost(ev.Model, ev.TS, delta)
				}
				cur := ev.Usage
				prev = &cur
				res.events = append(res.events, *ev)
				res.lastEventKey = core.StringPtr(ev.ID)
			}
			if line.Message != nil {
				res.messages = append(res.messages, *line.Message)
			}
			res.limits = append(res.limits, line.Limits...)
		}
		if !complete {
			break
		}
	}

	res.model, res.effort = lc.Model, lc.Effort
	return res
}
