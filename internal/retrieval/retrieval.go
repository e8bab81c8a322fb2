// Package retrieval ranks stored text chunks (resume sections, saved job
// postings) against a query. Results are grouped by chunk type priority,
// then ordered by score, with a per-type cap.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"
)

type ChunkType string

const (
	ChunkExperience    ChunkType = "experience"
	ChunkProject       ChunkType = "project"
	ChunkSkill         ChunkType = "skill"
	ChunkEducation     ChunkType = "education"
	ChunkCertification ChunkType = "certification"
	ChunkSummary       ChunkType = "summary"
	ChunkOther         ChunkType = "other"
	ChunkJob           ChunkType = "job"
)

var priority = []ChunkType{
	ChunkExperience, ChunkProject, ChunkSkill, ChunkEducation,
	ChunkCertification, ChunkSummary, ChunkOther, ChunkJob,
}

// DefaultLimits caps resume context per section type. Jobs are only
// returned when asked for explicitly.
func DefaultLimits() map[ChunkType]int {
	return map[ChunkType]int{
		ChunkExperience:    4,
		ChunkProject:       3,
		ChunkSkill:         3,
		ChunkEducation:     2,
		ChunkCertification: 2,
		ChunkSummary:       1,
		ChunkOther:         2,
	}
}

type Chunk struct {
	ID       string            `json:"id"`
	Type     ChunkType         `json:"type"`
	Title    string            `json:"title,omitempty"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Score    float64           `json:"score"`
}

type Retriever interface {
	Retrieve(ctx context.Context, userID, query string, limits map[ChunkType]int) ([]Chunk, error)
}

// Index is an in-memory, per-user chunk store.
type Index struct {
	mu     sync.RWMutex
	chunks map[string][]Chunk
}

func NewIndex() *Index {
	return &Index{chunks: map[string][]Chunk{}}
}

func (ix *Index) Add(userID string, chunks ...Chunk) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		ix.chunks[userID] = append(ix.chunks[userID], c)
	}
}

// AddDocument chunks a resume-like document and indexes it. It returns the
// number of chunks added.
func (ix *Index) AddDocument(userID, text string) int {
	chunks := ChunkDocument(text)
	ix.Add(userID, chunks...)
	return len(chunks)
}

// SetDocument replaces every chunk the user previously indexed from source
// with the chunks of text. It returns the number of chunks added.
func (ix *Index) SetDocument(userID, source, text string) int {
	chunks := ChunkDocument(text)
	for i := range chunks {
		chunks[i].Metadata = map[string]string{"source": source}
	}
	ix.mu.Lock()
	kept := ix.chunks[userID][:0:0]
	for _, c := range ix.chunks[userID] {
		if c.Metadata["source"] != source {
			kept = append(kept, c)
		}
	}
	ix.chunks[userID] = append(kept, chunks...)
	ix.mu.Unlock()
	return len(chunks)
}

// Has reports whether the user has a chunk of type t whose metadata key
// equals value.
func (ix *Index) Has(userID string, t ChunkType, key, value string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	for _, c := range ix.chunks[userID] {
		if c.Type == t && c.Metadata[key] == value {
			return true
		}
	}
	return false
}

func (ix *Index) Count(userID string, t ChunkType) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	n := 0
	for _, c := range ix.chunks[userID] {
		if t == "" || c.Type == t {
			n++
		}
	}
	return n
}

func (ix *Index) Retrieve(ctx context.Context, userID, query string, limits map[ChunkType]int) ([]Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limits == nil {
		limits = DefaultLimits()
	}
	terms := tokenize(query)

	ix.mu.RLock()
	byType := map[ChunkType][]Chunk{}
	for _, c := range ix.chunks[userID] {
		if limits[c.Type] <= 0 {
			continue
		}
		c.Score = score(terms, c)
		byType[c.Type] = append(byType[c.Type], c)
	}
	ix.mu.RUnlock()

	var out []Chunk
	for _, t := range priority {
		group := byType[t]
		sort.SliceStable(group, func(i, j int) bool { return group[i].Score > group[j].Score })
		if len(group) > limits[t] {
			group = group[:limits[t]]
		}
		out = append(out, group...)
	}
	return out, nil
}

// FormatForPrompt renders chunks as labelled sections for a prompt.
func FormatForPrompt(chunks []Chunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		title := c.Title
		if title == "" {
			title = string(c.Type)
		}
		sb.WriteString(fmt.Sprintf("[%s] %s\n%s\n\n", strings.ToUpper(string(c.Type)), title, strings.TrimSpace(c.Content)))
	}
	return strings.TrimSpace(sb.String())
}

var sectionKeywords = []struct {
	t     ChunkType
	words []string
}{
	{ChunkExperience, []string{"experience", "employment", "work history"}},
	{ChunkProject, []string{"project"}},
	{ChunkSkill, []string{"skill", "technologies", "tech stack"}},
	{ChunkEducation, []string{"education", "academic"}},
	{ChunkCertification, []string{"certification", "certificate", "license"}},
	{ChunkSummary, []string{"summary", "profile", "about", "objective"}},
}

func classifyHeading(h string) ChunkType {
	h = strings.ToLower(h)
	for _, s := range sectionKeywords {
		for _, w := range s.words {
			if strings.Contains(h, w) {
				return s.t
			}
		}
	}
	return ChunkOther
}

func isHeading(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "#") {
		return strings.TrimSpace(strings.TrimLeft(trimmed, "#")), true
	}
	if strings.HasSuffix(trimmed, ":") && len(trimmed) < 40 && !strings.Contains(trimmed, " - ") {
		return strings.TrimSuffix(trimmed, ":"), true
	}
	return "", false
}

// ChunkDocument splits text on headings. Experience and project sections
// are further split on blank lines so each role or project is one chunk.
func ChunkDocument(text string) []Chunk {
	var chunks []Chunk
	section, sectionType := "", ChunkSummary
	var para []string

	flush := func() {
		body := strings.TrimSpace(strings.Join(para, "\n"))
		para = nil
		if body == "" {
			return
		}
		chunks = append(chunks, Chunk{ID: uuid.New().String(), Type: sectionType, Title: section, Content: body})
	}
	for _, line := range strings.Split(text, "\n") {
		if h, ok := isHeading(line); ok {
			flush()
			section, sectionType = h, classifyHeading(h)
			continue
		}
		if strings.TrimSpace(line) == "" && (sectionType == ChunkExperience || sectionType == ChunkProject) {
			flush()
			continue
		}
		para = append(para, line)
	}
	flush()
	return chunks
}

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "the": true, "of": true, "to": true, "in": true,
	"for": true, "with": true, "on": true, "at": true, "is": true, "are": true, "or": true,
	"we": true, "you": true, "our": true, "be": true, "as": true, "by": true,
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 2 || stopWords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// score is term overlap normalized by chunk length.
func score(terms []string, c Chunk) float64 {
	if len(terms) == 0 {
		return 0
	}
	words := tokenize(c.Title + " " + c.Content)
	if len(words) == 0 {
		return 0
	}
	counts := make(map[string]int, len(words))
	for _, w := range words {
		counts[w]++
	}
	hits := 0.0
	for _, t := range terms {
		if counts[t] > 0 {
			hits += 1 + math.Log(float64(counts[t]))
		}
	}
	return hits / math.Sqrt(float64(len(words)))
}
