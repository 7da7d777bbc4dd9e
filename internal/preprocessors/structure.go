package preprocessors

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// fenceMarker opens and closes a fenced code block.
const fenceMarker = "```"

var (
	headingRe  = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	listItemRe = regexp.MustCompile(`^(?:[-*+]|\d+\.)\s+`)
	spaceRe    = regexp.MustCompile(`\s+`)
)

// parseStructure converts raw text into the section hierarchy.
//
// Headings open new sections. Paragraphs and list items become section
// items with internal whitespace collapsed. Fenced code blocks are
// extracted verbatim into the owning section's CodeBlocks list, leaving
// a placeholder item in their place. Text before the first heading lands
// in an untitled level-1 section, which is also the degraded form for
// input with no headings at all.
func parseStructure(content string) []domain.Section {
	lines := strings.Split(content, "\n")

	var sections []domain.Section
	current := domain.Section{Level: 1}

	var para []string
	var fenceLines []string
	var fenceLang string
	inFence := false

	flushPara := func() {
		if len(para) == 0 {
			return
		}
		text := collapseWhitespace(strings.Join(para, " "))
		if text != "" {
			current.Items = append(current.Items, text)
		}
		para = para[:0]
	}

	closeFence := func() {
		current.CodeBlocks = append(current.CodeBlocks, domain.CodeBlock{
			Language: fenceLang,
			Text:     strings.Join(fenceLines, "\n"),
			Section:  current.Title,
		})
		current.Items = append(current.Items, domain.CodeBlockPlaceholder(len(current.CodeBlocks)-1))
		fenceLines = nil
		fenceLang = ""
		inFence = false
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, fenceMarker) {
			if inFence {
				closeFence()
			} else {
				flushPara()
				fenceLang = strings.TrimSpace(strings.TrimPrefix(trimmed, fenceMarker))
				inFence = true
			}
			continue
		}

		if inFence {
			// Verbatim, including blank lines and indentation.
			fenceLines = append(fenceLines, line)
			continue
		}

		if m := headingRe.FindStringSubmatch(trimmed); m != nil {
			flushPara()
			if !current.Empty() || current.Title != "" {
				sections = append(sections, current)
			}
			current = domain.Section{
				Title: strings.TrimSpace(m[2]),
				Level: len(m[1]),
			}
			continue
		}

		if trimmed == "" {
			flushPara()
			continue
		}

		if listItemRe.MatchString(trimmed) {
			flushPara()
			item := collapseWhitespace(listItemRe.ReplaceAllString(trimmed, ""))
			if item != "" {
				current.Items = append(current.Items, item)
			}
			continue
		}

		para = append(para, trimmed)
	}

	if inFence {
		// Unterminated fence: keep the gathered lines as a code block
		// rather than dropping them.
		closeFence()
	}
	flushPara()

	if !current.Empty() || current.Title != "" || len(sections) == 0 {
		sections = append(sections, current)
	}

	return sections
}

// collapseWhitespace squeezes runs of whitespace into single spaces.
func collapseWhitespace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// extractTitle returns the first top-level heading, or fallback when
// none exists.
func extractTitle(sections []domain.Section, fallback string) string {
	for i := range sections {
		if sections[i].Title != "" {
			return sections[i].Title
		}
	}
	return fallback
}
