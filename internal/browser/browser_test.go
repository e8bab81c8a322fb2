package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectATS(t *testing.T) {
	testCases := []struct {
		url  string
		want ATS
	}{
		{"https://boards.greenhouse.io/acme/jobs/123", ATSGreenhouse},
		{"https://jobs.lever.co/acme/abc", ATSLever},
		{"https://acme.wd5.myworkdayjobs.com/en-US/careers/job/1", ATSWorkday},
		{"https://jobs.ashbyhq.com/acme/1", ATSAshby},
		{"https://acme.bamboohr.com/careers/7", ATSBambooHR},
		{"https://jobs.smartrecruiters.com/Acme/1", ATSSmartRecruiters},
		{"https://careers-acme.icims.com/jobs/1/job", ATSICIMS},
		{"https://jobs.jobvite.com/acme/job/1", ATSJobvite},
		{"https://acme.example.com/careers", ATSUnknown},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, DetectATS(tc.url), tc.url)
	}
}

const board = `<html><body>
<div class="job-card">
  <h3 class="title">Senior Go Engineer</h3>
  <span class="company">Initech</span><span class="location">Remote</span>
  <p class="description">Build   services in Go.</p>
  <a href="/jobs/42">Apply</a>
</div>
<div class="job-card"><a href="https://other.example.com/jobs/7">Platform Engineer</a></div>
<div class="job-card"></div>
</body></html>`

func TestParseListings(t *testing.T) {
	got, err := ParseListings(board, "https://boards.example.com/")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Listing{
		Title:       "Senior Go Engineer",
		Company:     "Initech",
		Location:    "Remote",
		URL:         "https://boards.example.com/jobs/42",
		Description: "Build services in Go.",
	}, got[0])
	assert.Equal(t, "Platform Engineer", got[1].Title)
	assert.Equal(t, "https://other.example.com/jobs/7", got[1].URL)
}

func TestParseListingsFallsBackToJobLinks(t *testing.T) {
	got, err := ParseListings(`<a href="/about">About</a><a href="/job/1">Data Engineer</a>`, "https://x.example.com")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Data Engineer", got[0].Title)
	assert.Equal(t, "https://x.example.com/job/1", got[0].URL)
}

func TestParseListingsResolvesAgainstBaseHref(t *testing.T) {
	page := `<html><head><base href="/careers/"></head><body>
<div class="job"><a href="open/9#apply">SRE</a></div>
<div class="job"><a href="javascript:apply()">Mystery role</a></div>
</body></html>`
	got, err := ParseListings(page, "https://acme.example.com/home")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://acme.example.com/careers/open/9", got[0].URL)
	assert.Equal(t, "", got[1].URL)

	got, err = ParseListings(`<a href="mailto:jobs@acme.example.com">Email jobs</a><a href="jobs/3">Go Dev</a>`, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "jobs/3", got[0].URL)
}

func TestResolveLink(t *testing.T) {
	base, err := url.Parse("https://boards.example.com/jobs/")
	require.NoError(t, err)
	assert.Equal(t, "https://boards.example.com/jobs/42", resolveLink(base, "42"))
	assert.Equal(t, "https://other.example.com/x", resolveLink(base, " https://other.example.com/x#top "))
	assert.Equal(t, "/x", resolveLink(nil, "/x"))
	assert.Equal(t, "", resolveLink(base, ""))
	assert.Equal(t, "", resolveLink(base, "mailto:hr@example.com"))
}

const form = `<form>
<label for="first_name">First name *</label><input id="first_name" name="first_name" required>
<label for="why">Why do you want to work here?</label><textarea id="why"></textarea>
<label>Expected salary <input name="salary" type="number"></label>
<select id="visa"><option>Yes</option><option>No</option></select>
<input type="hidden" name="token" value="x">
<input type="file" name="resume">
<input type="submit" value="Send">
</form>`

func TestParseForm(t *testing.T) {
	qs, err := ParseForm(form)
	require.NoError(t, err)
	require.Len(t, qs, 4)

	assert.Equal(t, Question{ID: "first_name", Label: "First name", Kind: "text", Required: true}, qs[0])
	assert.Equal(t, "textarea", qs[1].Kind)
	assert.Equal(t, "Why do you want to work here?", qs[1].Label)
	assert.Equal(t, "salary", qs[2].ID)
	assert.Equal(t, "number", qs[2].Kind)
	assert.Equal(t, "Expected salary", qs[2].Label)
	assert.Equal(t, "select", qs[3].Kind)
	assert.Equal(t, []string{"Yes", "No"}, qs[3].Options)
}

func TestInnerText(t *testing.T) {
	txt, err := InnerText(`<html><head><style>p{}</style></head><body><h1>Go  Dev</h1>
<script>x()</script>
<p>Remote</p></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, "Go Dev Remote", txt)
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "career-agent/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("<p>ok</p>"))
	}))
	defer srv.Close()

	c := NewClient(time.Second)
	body, err := c.Fetch(context.Background(), srv.URL+"/board")
	require.NoError(t, err)
	assert.Equal(t, "<p>ok</p>", body)

	_, err = c.Fetch(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)
}

func TestSubmitIsDryRun(t *testing.T) {
	c := NewClient(0)
	r, err := c.Submit(context.Background(), Submission{URL: "https://jobs.lever.co/x", ATS: ATSLever, Answers: map[string]string{"a": "b"}})
	require.NoError(t, err)
	assert.True(t, r.DryRun)
	assert.NotEmpty(t, r.ID)
	assert.Len(t, c.Submissions(), 1)

	_, err = c.Submit(context.Background(), Submission{})
	assert.Error(t, err)
}
