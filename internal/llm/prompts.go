package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const labelSystemPrompt = `You are a reading analyst for a software developer who tracks AI and
engineering content. Classify each article below with tags.

Identity tags (pick 1, or 2 when both apply):
- "#dev-essential": directly useful for the reader's day-to-day engineering work
- "#blog-material": a good seed for the reader's own writing
- "#dual-value": both of the above at once
- "#ignore": noise, ads, or content with no value to this reader

Theme tags (pick at most 2):
- "#model-news": model or product releases and announcements
- "#tutorial": how-to guides and walkthroughs
- "#deep-dive": technical internals and architecture analysis
- "#experience": practitioner write-ups and retrospectives
- "#ai-app": applications built on AI
- "#fun": entertaining or curiosity pieces

Additionally you may add up to 2 free-form "extra" tags, each at most 6
characters, when a salient topic is not covered by the themes. Set
"vibe_coding" to true when the article is about AI-assisted coding
workflows.

Respond with JSON: {"results": [{"id": "...", "identities": [...],
"themes": [...], "extra": [...], "vibe_coding": false}, ...]}. Echo each
article's id unchanged. Return one result per article.`

const summarySystemPrompt = `You are a reading assistant for a software developer. Summarize the
article below in Markdown with exactly these two sections:

## Key Arguments

3-5 bullet points capturing the article's core claims and findings.

## Value to Me

1-2 sentences on why this matters to a working engineer who builds with
AI tooling.

Be concrete and faithful to the source. Do not invent facts. Respond
with the Markdown only, no preamble.`

func buildLabelUserPrompt(requests []LabelRequest) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Classify these %d articles:\n\n", len(requests))

	for i, req := range requests {
		fmt.Fprintf(&sb, "[%d] id: %s\n", i+1, req.ID)
		fmt.Fprintf(&sb, "Title: %s\n", req.Title)

		if req.SourceTitle != "" {
			fmt.Fprintf(&sb, "Source: %s\n", req.SourceTitle)
		}

		if req.Link != "" {
			fmt.Fprintf(&sb, "Link: %s\n", req.Link)
		}

		body := req.Content
		if body == "" {
			body = req.Description
		}

		fmt.Fprintf(&sb, "Content: %s\n\n", truncateRunes(body, labelContentLimit))
	}

	return sb.String()
}

func buildSummaryUserPrompt(req SummaryRequest) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Title: %s\n", req.Title)

	if req.SourceTitle != "" {
		fmt.Fprintf(&sb, "Source: %s\n", req.SourceTitle)
	}

	if req.Link != "" {
		fmt.Fprintf(&sb, "Link: %s\n", req.Link)
	}

	fmt.Fprintf(&sb, "\n%s", truncateRunes(req.Content, summaryContentLimit))

	return sb.String()
}

const (
	labelContentLimit   = 2000
	summaryContentLimit = 12000
)

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}

	runes := []rune(s)

	return string(runes[:max]) + "..."
}
