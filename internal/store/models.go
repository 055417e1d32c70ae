package store

import (
	"encoding/json"
	"time"
)

// SourceType classifies what a feed publishes.
type SourceType string

const (
	SourcePaper      SourceType = "paper"
	SourceBlog       SourceType = "blog"
	SourceNews       SourceType = "news"
	SourceVideo      SourceType = "video"
	SourceNewsletter SourceType = "newsletter"
)

// Valid reports whether t is a known source type.
func (t SourceType) Valid() bool {
	switch t {
	case SourcePaper, SourceBlog, SourceNews, SourceVideo, SourceNewsletter:
		return true
	}
	return false
}

// TrustLevel is an editorial weight attached to a source.
type TrustLevel string

const (
	TrustHigh   TrustLevel = "high"
	TrustMedium TrustLevel = "medium"
	TrustSignal TrustLevel = "signal"
)

// Valid reports whether l is a known trust level.
func (l TrustLevel) Valid() bool {
	switch l {
	case TrustHigh, TrustMedium, TrustSignal:
		return true
	}
	return false
}

// Persona is an audience segment summaries are written for.
type Persona string

const (
	PersonaBuilders       Persona = "builders"
	PersonaExecutors      Persona = "executors"
	PersonaExplorers      Persona = "explorers"
	PersonaThoughtLeaders Persona = "thought_leaders"
)

// Confidence levels a summary may carry.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Source is a registered feed.
type Source struct {
	ID          int64      `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Type        SourceType `db:"type" json:"type"`
	URL         string     `db:"url" json:"url"`
	FeedURL     string     `db:"feed_url" json:"feed_url"`
	TrustLevel  TrustLevel `db:"trust_level" json:"trust_level"`
	FetchMethod string     `db:"fetch_method" json:"fetch_method"`
}

// Item is one ingested feed entry.
type Item struct {
	ID           string            `db:"id" json:"id"`
	SourceID     int64             `db:"source_id" json:"source_id"`
	Title        string            `db:"title" json:"title"`
	URL          string            `db:"url" json:"url"`
	PublishedAt  time.Time         `db:"published_at" json:"published_at"`
	RawText      string            `db:"raw_text" json:"raw_text,omitempty"`
	ContentType  SourceType        `db:"content_type" json:"content_type"`
	Hash         string            `db:"hash" json:"-"`
	Metadata     map[string]string `db:"-" json:"metadata,omitempty"`
	MetadataJSON string            `db:"metadata" json:"-"`
	StoryID      *string           `db:"story_id" json:"story_id,omitempty"`
	IngestedAt   time.Time         `db:"ingested_at" json:"ingested_at"`
}

// Story groups items that report the same event.
type Story struct {
	ID             string    `db:"id" json:"id"`
	CanonicalTitle string    `db:"canonical_title" json:"canonical_title"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	Tags           []string  `db:"-" json:"tags"`
	TagsJSON       string    `db:"tags" json:"-"`
	Score          float64   `db:"score" json:"score"`
	ItemCount      int       `db:"item_count" json:"item_count"`
}

// StorySummary is one persona/category summary of a story.
type StorySummary struct {
	ID              string    `db:"id" json:"id"`
	StoryID         string    `db:"story_id" json:"story_id"`
	Persona         Persona   `db:"persona" json:"persona"`
	Category        string    `db:"category" json:"category"`
	SummaryShort    string    `db:"summary_short" json:"summary_short"`
	Bullets         []string  `db:"-" json:"summary_bullets"`
	BulletsJSON     string    `db:"summary_bullets" json:"-"`
	WhyItMatters    string    `db:"why_it_matters" json:"why_it_matters,omitempty"`
	KeyEntities     []string  `db:"-" json:"key_entities"`
	KeyEntitiesJSON string    `db:"key_entities" json:"-"`
	Confidence      string    `db:"confidence" json:"confidence"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// StoryView is a story with its items and summaries, as served to readers.
type StoryView struct {
	Story
	Items     []Item         `json:"items"`
	Summaries []StorySummary `json:"summaries"`
}

func encodeJSON(v any, empty string) string {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return empty
	}
	return string(b)
}

func (i *Item) decode() {
	_ = json.Unmarshal([]byte(i.MetadataJSON), &i.Metadata)
}

func (s *Story) decode() {
	_ = json.Unmarshal([]byte(s.TagsJSON), &s.Tags)
	if s.Tags == nil {
		s.Tags = []string{}
	}
}

func (s *StorySummary) decode() {
	_ = json.Unmarshal([]byte(s.BulletsJSON), &s.Bullets)
	_ = json.Unmarshal([]byte(s.KeyEntitiesJSON), &s.KeyEntities)
	if s.Bullets == nil {
		s.Bullets = []string{}
	}
	if s.KeyEntities == nil {
		s.KeyEntities = []string{}
	}
}
