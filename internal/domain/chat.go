package domain

import (
	"encoding/json"
	"strconv"
)

const (
	// MinChapter and MaxChapter bound the textbook chapter range.
	MinChapter = 1
	MaxChapter = 13

	// MaxSources caps the attribution list returned with an answer.
	MaxSources = 3
	// ExcerptLimit caps source excerpt length in characters.
	ExcerptLimit = 200

	excerptMarker = "..."

	// chapterUnknown is emitted for passages stored without a chapter tag.
	chapterUnknown = "N/A"
)

// Query is a single chat question, optionally anchored to a highlighted
// passage and a chapter filter. It lives for one orchestration call.
type Query struct {
	Message      string
	SelectedText string
	Chapter      int // 1..13, 0 = no filter
}

// EffectiveText returns the text used for retrieval. A highlighted passage
// is prefixed so retrieval is biased toward its vicinity.
func (q Query) EffectiveText() string {
	if q.SelectedText == "" {
		return q.Message
	}
	return q.SelectedText + "\n\nQuestion: " + q.Message
}

// ValidChapter reports whether n is a usable chapter filter (0 = unfiltered).
func ValidChapter(n int) bool {
	return n == 0 || (n >= MinChapter && n <= MaxChapter)
}

// Payload is the stored metadata attached to an indexed passage.
type Payload struct {
	Chapter int
	Section string
	Content string
}

// SearchHit is one nearest-neighbor result. Score semantics are
// provider-defined; higher means more similar. Hits arrive ordered by
// descending score and are never mutated.
type SearchHit struct {
	ID      string
	Score   float64
	Payload Payload
}

// Source attributes part of an answer to an indexed passage.
// Chapter 0 means the passage carried no chapter tag; on the wire that
// renders as the "N/A" sentinel.
type Source struct {
	Chapter int
	Section string
	Excerpt string
	Score   float64
}

// sourceWire is the JSON form of Source. Chapter is a number or "N/A".
type sourceWire struct {
	Chapter json.RawMessage `json:"chapter"`
	Section string          `json:"section,omitempty"`
	Excerpt string          `json:"excerpt"`
	Score   float64         `json:"score"`
}

// MarshalJSON renders the chapter number, or "N/A" for untagged passages.
func (s Source) MarshalJSON() ([]byte, error) {
	chapter := json.RawMessage(strconv.Itoa(s.Chapter))
	if s.Chapter == 0 {
		chapter = json.RawMessage(`"` + chapterUnknown + `"`)
	}
	return json.Marshal(sourceWire{
		Chapter: chapter,
		Section: s.Section,
		Excerpt: s.Excerpt,
		Score:   s.Score,
	})
}

// UnmarshalJSON accepts both the numeric and the "N/A" chapter forms.
func (s *Source) UnmarshalJSON(data []byte) error {
	var w sourceWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.Section = w.Section
	s.Excerpt = w.Excerpt
	s.Score = w.Score
	s.Chapter = 0
	if len(w.Chapter) > 0 && w.Chapter[0] != '"' {
		if err := json.Unmarshal(w.Chapter, &s.Chapter); err != nil {
			return err
		}
	}
	return nil
}

// NewSource builds a Source from a hit, truncating the excerpt to
// ExcerptLimit characters and appending a truncation marker.
func NewSource(hit SearchHit) Source {
	excerpt := hit.Payload.Content
	if runes := []rune(excerpt); len(runes) > ExcerptLimit {
		excerpt = string(runes[:ExcerptLimit])
	}
	return Source{
		Chapter: hit.Payload.Chapter,
		Section: hit.Payload.Section,
		Excerpt: excerpt + excerptMarker,
		Score:   hit.Score,
	}
}

// Answer is a generated response with its ranked source attribution.
type Answer struct {
	Message string
	Sources []Source
}
