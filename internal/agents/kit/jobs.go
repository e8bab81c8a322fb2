package kit

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"career-agent/internal/browser"
)

// Criteria narrows a job search.
type Criteria struct {
	Query    string   `json:"query"`
	Keywords []string `json:"keywords"`
	Location string   `json:"location,omitempty"`
	Remote   bool     `json:"remote"`
	Limit    int      `json:"limit"`
}

// Matches reports whether a listing satisfies the criteria. A listing
// matches when it mentions any keyword and, if set, the location.
func (c Criteria) Matches(l browser.Listing) bool {
	hay := strings.ToLower(l.Title + " " + l.Company + " " + l.Description)
	if len(c.Keywords) > 0 {
		hit := false
		for _, k := range c.Keywords {
			if strings.Contains(hay, strings.ToLower(k)) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	loc := strings.ToLower(l.Location)
	if c.Remote && !strings.Contains(loc, "remote") {
		return false
	}
	if c.Location != "" && !c.Remote && !strings.Contains(loc, strings.ToLower(c.Location)) && !strings.Contains(loc, "remote") {
		return false
	}
	return true
}

type JobSource interface {
	Search(ctx context.Context, c Criteria) ([]browser.Listing, error)
}

// BoardSource scrapes listing pages. A "{query}" placeholder in a URL is
// replaced with the escaped search query.
type BoardSource struct {
	Browser *browser.Client
	URLs    []string
}

const boardConcurrency = 4

func (b BoardSource) Search(ctx context.Context, c Criteria) ([]browser.Listing, error) {
	if len(b.URLs) == 0 {
		return nil, errors.New("no job sources configured")
	}
	pages := make([][]browser.Listing, len(b.URLs))
	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(boardConcurrency)
	for i, raw := range b.URLs {
		target := strings.ReplaceAll(raw, "{query}", url.QueryEscape(c.Query))
		g.Go(func() error {
			html, err := b.Browser.Fetch(gctx, target)
			if err == nil {
				pages[i], err = browser.ParseListings(html, target)
			}
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("source %s: %w", target, err))
				mu.Unlock()
			}
			return nil // one bad board does not sink the search
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(errs) == len(b.URLs) {
		return nil, errors.Join(errs...)
	}

	var out []browser.Listing
	for _, page := range pages {
		for _, l := range page {
			if c.Matches(l) {
				out = append(out, l)
			}
		}
	}
	return limit(out, c.Limit), nil
}

//go:embed sample_jobs.json
var sampleJobs []byte

// SampleSource serves a fixed set of listings, for running without any
// configured boards.
type SampleSource struct{}

func (SampleSource) Search(ctx context.Context, c Criteria) ([]browser.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var all []browser.Listing
	if err := json.Unmarshal(sampleJobs, &all); err != nil {
		return nil, fmt.Errorf("sample jobs: %w", err)
	}
	var out []browser.Listing
	for _, l := range all {
		if c.Matches(l) {
			out = append(out, l)
		}
	}
	return limit(out, c.Limit), nil
}

func limit(ls []browser.Listing, n int) []browser.Listing {
	if n > 0 && len(ls) > n {
		return ls[:n]
	}
	return ls
}
