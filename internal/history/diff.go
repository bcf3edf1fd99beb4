package history

import (
	"time"

	"github.com/nao1215/sitemapper/internal/model"
)

// RunSnapshot identifies one side of a comparison.
type RunSnapshot struct {
	RunID       string       `json:"run_id"`
	StartedAt   time.Time    `json:"started_at"`
	URLCount    int          `json:"url_count"`
	Failures    int          `json:"failures"`
	Status      model.Status `json:"status"`
	SitemapPath string       `json:"sitemap_path,omitempty"`
}

// RunDiff is the difference between the URL sets of two runs of a root.
type RunDiff struct {
	Root     string      `json:"root"`
	Previous RunSnapshot `json:"previous"`
	Current  RunSnapshot `json:"current"`

	// Added are URLs of the current run missing from the previous one,
	// in the current run's discovery order.
	Added []string `json:"added"`

	// Removed are URLs of the previous run missing from the current one,
	// in the previous run's discovery order.
	Removed []string `json:"removed"`

	// Unchanged counts URLs present in both runs.
	Unchanged int `json:"unchanged"`
}

// Changed reports whether the URL sets differ.
func (d *RunDiff) Changed() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0
}

// Diff compares the URL sets of two reports.
func Diff(previous, current *model.CrawlReport) *RunDiff {
	d := &RunDiff{
		Root:     current.Root,
		Previous: snapshot(previous),
		Current:  snapshot(current),
		Added:    make([]string, 0),
		Removed:  make([]string, 0),
	}

	before := make(map[string]struct{}, len(previous.URLs))
	for _, u := range previous.URLs {
		before[u] = struct{}{}
	}
	after := make(map[string]struct{}, len(current.URLs))
	for _, u := range current.URLs {
		after[u] = struct{}{}
	}

	for _, u := range current.URLs {
		if _, ok := before[u]; ok {
			d.Unchanged++
		} else {
			d.Added = append(d.Added, u)
		}
	}
	for _, u := range previous.URLs {
		if _, ok := after[u]; !ok {
			d.Removed = append(d.Removed, u)
		}
	}
	return d
}

func snapshot(r *model.CrawlReport) RunSnapshot {
	return RunSnapshot{
		RunID:       r.ID.String(),
		StartedAt:   r.StartedAt,
		URLCount:    len(r.URLs),
		Failures:    len(r.Failures),
		Status:      r.Status(),
		SitemapPath: r.SitemapPath,
	}
}
