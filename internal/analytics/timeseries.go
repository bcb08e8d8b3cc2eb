package analytics

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/janekbaraniewski/codextracker/internal/core"
)

type Bucket string

const (
	BucketHour Bucket = "hour"
	BucketDay  Bucket = "day"
)

type Metric string

const (
	MetricTokens Metric = "tokens"
	MetricCost   Metric = "cost"
)

const bucketLayout = "2006-01-02T15:04:05-07:00"

func ParseBucket(v string) (Bucket, error) {
	switch b := Bucket(strings.ToLower(strings.TrimSpace(v))); b {
	case BucketHour, BucketDay:
		return b, nil
	case "":
		return BucketDay, nil
	default:
		return "", core.InvalidInput("unsupported bucket %s", v)
	}
}

func ParseMetric(v string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(v))); m {
	case MetricTokens, MetricCost:
		return m, nil
	case "":
		return MetricTokens, nil
	default:
		return "", core.InvalidInput("unsupported metric %s", v)
	}
}

// TimeSeries sums deltas into local-time buckets. The cost metric uses a
// row's stored cost, else its repriced cost, else zero.
func (e *Engine) TimeSeries(ctx context.Context, homeID int64, r core.TimeRange, bucket Bucket, metric Metric) ([]core.TimeSeriesPoint, error) {
	if bucket != BucketHour && bucket != BucketDay {
		return nil, core.InvalidInput("unsupported bucket %s", bucket)
	}
	if metric != MetricTokens && metric != MetricCost {
		return nil, core.InvalidInput("unsupported metric %s", metric)
	}
	rows, rules, err := e.load(ctx, homeID, r, nil)
	if err != nil {
		return nil, err
	}

	sums := map[string]float64{}
	for _, row := range rows {
		ts, err := time.Parse(time.RFC3339Nano, row.TS)
		if err != nil {
			continue
		}
		key := bucketStart(ts.In(e.loc), bucket)

		var value float64
		switch metric {
		case MetricTokens:
			value = float64(row.Delta.TotalTokens)
		case MetricCost:
			if row.CostUSD != nil {
				value = *row.CostUSD
			} else {
				value = rules.Breakdown(row.Model, row.TS, row.Delta).TotalCostUSD
			}
		}
		sums[key] += value
	}

	keys := lo.Keys(sums)
	sort.Strings(keys)
	return lo.Map(keys, func(k string, _ int) core.TimeSeriesPoint {
		return core.TimeSeriesPoint{BucketStart: k, Value: sums[k]}
	}), nil
}

func bucketStart(t time.Time, bucket Bucket) string {
	hour := t.Hour()
	if bucket == BucketDay {
		hour = 0
	}
	return time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, t.Location()).Format(bucketLayout)
}
