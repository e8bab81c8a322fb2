// Package browser fetches and reads job pages and application forms. It
// never drives a real browser: Submit records what would have been sent.
package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type ATS string

const (
	ATSGreenhouse      ATS = "greenhouse"
	ATSLever           ATS = "lever"
	ATSWorkday         ATS = "workday"
	ATSAshby           ATS = "ashby"
	ATSBambooHR        ATS = "bamboohr"
	ATSSmartRecruiters ATS = "smartrecruiters"
	ATSICIMS           ATS = "icims"
	ATSJobvite         ATS = "jobvite"
	ATSUnknown         ATS = "unknown"
)

var atsMarkers = []struct {
	marker string
	ats    ATS
}{
	{"greenhouse.io", ATSGreenhouse},
	{"lever.co", ATSLever},
	{"myworkdayjobs.com", ATSWorkday},
	{"workday", ATSWorkday},
	{"ashbyhq.com", ATSAshby},
	{"bamboohr.com", ATSBambooHR},
	{"smartrecruiters.com", ATSSmartRecruiters},
	{"icims.com", ATSICIMS},
	{"jobvite.com", ATSJobvite},
}

// DetectATS identifies the applicant tracking system from a posting URL.
func DetectATS(url string) ATS {
	u := strings.ToLower(url)
	for _, m := range atsMarkers {
		if strings.Contains(u, m.marker) {
			return m.ats
		}
	}
	return ATSUnknown
}

const maxBodyBytes = 4 << 20

type Client struct {
	http      *http.Client
	userAgent string

	mu          sync.Mutex
	submissions []Receipt
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		userAgent: "career-agent/1.0",
	}
}

// Fetch returns the body of url as text.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}
	return string(b), nil
}

type Submission struct {
	URL     string            `json:"url"`
	ATS     ATS               `json:"ats"`
	Answers map[string]string `json:"answers"`
	Resume  string            `json:"resume,omitempty"`
}

type Receipt struct {
	ID          string     `json:"id"`
	Submission  Submission `json:"submission"`
	SubmittedAt time.Time  `json:"submitted_at"`
	DryRun      bool       `json:"dry_run"`
}

// Submit records the submission without sending anything.
func (c *Client) Submit(ctx context.Context, s Submission) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	if strings.TrimSpace(s.URL) == "" {
		return Receipt{}, fmt.Errorf("submission has no target url")
	}
	r := Receipt{ID: uuid.New().String(), Submission: s, SubmittedAt: time.Now(), DryRun: true}
	c.mu.Lock()
	c.submissions = append(c.submissions, r)
	c.mu.Unlock()
	return r, nil
}

func (c *Client) Submissions() []Receipt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Receipt(nil), c.submissions...)
}
