package chunk

import "regexp"

var headingLineRe = regexp.MustCompile(`^#{1,6} `)
var codeFenceRe = regexp.MustCompile("^```")

// chunkMarkdown splits a document on heading lines (`^#{1,6} `). Each
// section between headings becomes one candidate chunk; sections larger
// than the token budget are further split on blank-line-separated
// paragraphs, greedily packed until the next paragraph would overflow
// the budget. A paragraph that is itself a fenced code block is never
// split across chunks.
func chunkMarkdown(doc *document, opts Options) []Chunk {
	sections := splitSections(doc)

	var out []Chunk
	for _, sec := range sections {
		content, _, _ := doc.span(sec.start, sec.end)
		if content == "" {
			continue
		}
		if EstimateTokens(content) <= opts.TargetTokens {
			out = append(out, packSingle(doc, sec.start, sec.end, out))
			continue
		}
		out = append(out, packParagraphs(doc, sec.start, sec.end, opts, out)...)
	}
	return out
}

type lineRange struct {
	start, end int
}

// splitSections partitions the document into heading-delimited sections.
// A leading section with no heading (introductory text) is included when
// present.
func splitSections(doc *document) []lineRange {
	var sections []lineRange
	curStart := 0
	for i, line := range doc.lines {
		if i > 0 && headingLineRe.MatchString(line) {
			sections = append(sections, lineRange{curStart, i - 1})
			curStart = i
		}
	}
	sections = append(sections, lineRange{curStart, len(doc.lines) - 1})
	return sections
}

func packSingle(doc *document, startLine, endLine int, existing []Chunk) Chunk {
	content, start, end := doc.span(startLine, endLine)
	overlap := 0
	if len(existing) > 0 {
		overlap = 0 // a whole section that fits the budget needs no overlap bookkeeping
	}
	return Chunk{Content: content, StartChar: start, EndChar: end, OverlapFromPrev: overlap}
}

// packParagraphs greedily packs blank-line-delimited paragraphs (treating
// a fenced code block as one atomic paragraph) until the budget would be
// exceeded, then starts a new chunk. A paragraph that alone exceeds the
// budget becomes its own oversized chunk rather than being dropped.
func packParagraphs(doc *document, sectionStart, sectionEnd int, opts Options, existing []Chunk) []Chunk {
	paragraphs := extractParagraphs(doc, sectionStart, sectionEnd)

	var out []Chunk
	prevTokens := 0
	curStart, curEnd := -1, -1
	curTokens := 0

	flush := func() {
		if curStart == -1 {
			return
		}
		content, start, end := doc.span(curStart, curEnd)
		if content == "" {
			curStart, curEnd, curTokens = -1, -1, 0
			return
		}
		overlap := 0
		if len(existing)+len(out) > 0 {
			if opts.OverlapTokens < prevTokens {
				overlap = opts.OverlapTokens
			} else {
				overlap = prevTokens
			}
		}
		out = append(out, Chunk{Content: content, StartChar: start, EndChar: end, OverlapFromPrev: overlap})
		prevTokens = EstimateTokens(content)
		curStart, curEnd, curTokens = -1, -1, 0
	}

	for _, p := range paragraphs {
		pTokens := EstimateTokens(joinSpan(doc, p.start, p.end))

		if curTokens > 0 && curTokens+pTokens > opts.TargetTokens {
			flush()
		}

		if pTokens > opts.TargetTokens {
			flush()
			curStart, curEnd = p.start, p.end
			flush()
			continue
		}

		if curStart == -1 {
			curStart = p.start
		}
		curEnd = p.end
		curTokens += pTokens
	}
	flush()

	return out
}

func joinSpan(doc *document, start, end int) string {
	content, _, _ := doc.span(start, end)
	return content
}

// extractParagraphs returns blank-line-delimited paragraphs within
// [start,end], treating a fenced code block as one atomic paragraph.
func extractParagraphs(doc *document, start, end int) []lineRange {
	var paragraphs []lineRange
	curStart := -1
	inFence := false

	flush := func(lastLine int) {
		if curStart != -1 {
			paragraphs = append(paragraphs, lineRange{curStart, lastLine})
			curStart = -1
		}
	}

	for i := start; i <= end; i++ {
		line := doc.lines[i]

		if codeFenceRe.MatchString(line) {
			if !inFence {
				flush(i - 1)
				curStart = i
				inFence = true
			} else {
				flush(i)
				inFence = false
			}
			continue
		}

		if inFence {
			continue
		}

		trimmedEmpty := isBlank(line)
		if trimmedEmpty {
			flush(i - 1)
			continue
		}

		if curStart == -1 {
			curStart = i
		}
	}
	flush(end)

	return paragraphs
}

func isBlank(s string) bool {
	for _, c := range s {
		if c != ' ' && c != '\t' {
			return false
		}
	}
	return true
}
