package browser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	htmldom "golang.org/x/net/html"
)

func parseDoc(html string) (*goquery.Document, error) {
	root, err := htmldom.Parse(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return goquery.NewDocumentFromNode(root), nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

type Listing struct {
	Title       string `json:"title"`
	Company     string `json:"company,omitempty"`
	Location    string `json:"location,omitempty"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

const listingSelector = ".job, .job-card, .posting, [data-job], li.opening"

// ParseListings extracts job cards from a board page. Pages without
// recognizable cards fall back to links whose href mentions a job.
func ParseListings(html, baseURL string) ([]Listing, error) {
	doc, err := parseDoc(html)
	if err != nil {
		return nil, err
	}
	base := pageBase(doc, baseURL)
	var out []Listing
	doc.Find(listingSelector).Each(func(_ int, s *goquery.Selection) {
		link := s.Find("a[href]").First()
		href, _ := link.Attr("href")
		title := collapse(s.Find(".title, h2, h3").First().Text())
		if title == "" {
			title = collapse(link.Text())
		}
		if title == "" {
			return
		}
		out = append(out, Listing{
			Title:       title,
			Company:     collapse(s.Find(".company").First().Text()),
			Location:    collapse(s.Find(".location").First().Text()),
			URL:         resolveLink(base, href),
			Description: collapse(s.Find(".description, p").First().Text()),
		})
	})
	if len(out) > 0 {
		return out, nil
	}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		title := collapse(s.Text())
		if title == "" || !strings.Contains(strings.ToLower(href), "job") {
			return
		}
		if link := resolveLink(base, href); link != "" {
			out = append(out, Listing{Title: title, URL: link})
		}
	})
	return out, nil
}

// pageBase is the URL links on the page resolve against: the page's own
// URL, overridden by a <base href> the document declares.
func pageBase(doc *goquery.Document, pageURL string) *url.URL {
	base, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || pageURL == "" {
		base = nil
	}
	href, ok := doc.Find("base[href]").First().Attr("href")
	if !ok {
		return base
	}
	declared, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return base
	}
	if base != nil {
		return base.ResolveReference(declared)
	}
	return declared
}

// resolveLink makes href absolute against base and drops its fragment, so a
// posting linked twice on a page dedupes to one URL. Script, mail and other
// non-web links resolve to "".
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https":
	default:
		return ""
	}
	u.Fragment = ""
	return u.String()
}

type Question struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Kind     string   `json:"kind"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

// ParseForm lists the answerable fields of an application form. Hidden,
// submit and file inputs are skipped.
func ParseForm(html string) ([]Question, error) {
	doc, err := parseDoc(html)
	if err != nil {
		return nil, err
	}
	labels := map[string]string{}
	doc.Find("label[for]").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("for")
		labels[id] = strings.TrimSuffix(collapse(s.Text()), "*")
	})

	var out []Question
	doc.Find("input, textarea, select").Each(func(i int, s *goquery.Selection) {
		kind := goquery.NodeName(s)
		if kind == "input" {
			kind = strings.ToLower(s.AttrOr("type", "text"))
		}
		switch kind {
		case "hidden", "submit", "button", "file", "image", "reset":
			return
		}
		id := s.AttrOr("id", s.AttrOr("name", fmt.Sprintf("field_%d", i)))
		label := strings.TrimSpace(labels[id])
		if label == "" {
			label = collapse(s.Closest("label").Text())
		}
		if label == "" {
			label = s.AttrOr("placeholder", s.AttrOr("aria-label", id))
		}
		_, required := s.Attr("required")
		q := Question{ID: id, Label: strings.TrimSpace(label), Kind: kind, Required: required}
		if kind == "select" {
			s.Find("option").Each(func(_ int, o *goquery.Selection) {
				if v := collapse(o.Text()); v != "" {
					q.Options = append(q.Options, v)
				}
			})
		}
		out = append(out, q)
	})
	return out, nil
}

// InnerText returns the visible text of a page, whitespace-collapsed.
func InnerText(html string) (string, error) {
	doc, err := parseDoc(html)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()
	return collapse(doc.Text()), nil
}
