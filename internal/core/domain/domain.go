// Package domain holds the core entities shared by the fetch and
// enrichment pipeline: feed sources, ingested items, and the AI label
// payload with its fixed tag vocabulary.
package domain

import "time"

// Source represents a registered feed subscription.
type Source struct {
	ID          string
	URL         string
	Title       string
	Description string
	Category    string
	Icon        string
	UnreadCount int
	IsActive    bool
	CreatedAt   time.Time
	LastFetched time.Time
}

// Item represents a single ingested feed entry and its enrichment state.
type Item struct {
	ID          string
	SourceID    string
	SourceTitle string
	GUID        string
	Title       string
	Link        string
	Description string
	Content     string
	CoverImage  string
	PublishedAt time.Time
	CreatedAt   time.Time

	IsRead     bool
	IsFavorite bool
	IsTrashed  bool
	TrashedAt  time.Time

	LabelStatus string
	Labels      *LabelSet
	LabelError  string

	SummaryStatus      string
	Summary            string
	SummaryError       string
	SummaryGeneratedAt time.Time
}

// Body returns the text used for enrichment: the full content when
// available, the entry description otherwise.
func (i *Item) Body() string {
	if i.Content != "" {
		return i.Content
	}

	return i.Description
}

// Label status values. Transitions are pending -> processing -> {done,error};
// error -> pending is written only by the retry scheduler.
const (
	LabelStatusPending    = "pending"
	LabelStatusProcessing = "processing"
	LabelStatusDone       = "done"
	LabelStatusError      = "error"
)

// Summary status values.
const (
	SummaryStatusPending    = "pending"
	SummaryStatusProcessing = "processing"
	SummaryStatusSuccess    = "success"
	SummaryStatusError      = "error"
	SummaryStatusIgnored    = "ignored"
)

// Identity tags. An item carries one, or two when it has dual value.
// TagIgnore excludes the item from summary generation.
const (
	TagDevEssential = "#dev-essential"
	TagBlogMaterial = "#blog-material"
	TagDualValue    = "#dual-value"
	TagIgnore       = "#ignore"
)

// Theme tags, at most two per item.
const (
	ThemeModelNews  = "#model-news"
	ThemeTutorial   = "#tutorial"
	ThemeDeepDive   = "#deep-dive"
	ThemeExperience = "#experience"
	ThemeAIApp      = "#ai-app"
	ThemeFun        = "#fun"
)

// IdentityTags is the closed identity vocabulary.
var IdentityTags = []string{TagDevEssential, TagBlogMaterial, TagDualValue, TagIgnore}

// ThemeTags is the closed theme vocabulary.
var ThemeTags = []string{ThemeModelNews, ThemeTutorial, ThemeDeepDive, ThemeExperience, ThemeAIApp, ThemeFun}

// LabelSet is the structured tag payload produced by the label processor.
// It is persisted as JSONB on the item row.
type LabelSet struct {
	Identities []string `json:"identities"`
	Themes     []string `json:"themes"`
	Extra      []string `json:"extra"`
	VibeCoding bool     `json:"vibe_coding"`
}

// IsSkip reports whether the label set carries the ignore identity tag,
// which excludes the item from summarization.
func (l *LabelSet) IsSkip() bool {
	if l == nil {
		return false
	}

	for _, tag := range l.Identities {
		if tag == TagIgnore {
			return true
		}
	}

	return false
}
