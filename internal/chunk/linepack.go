package chunk

// packLines greedily accumulates lines [startLine, endLine] (inclusive)
// until adding the next line would exceed targetTokens, emitting the
// accumulated span as a chunk. A single line that alone exceeds the
// budget is emitted as its own chunk rather than dropped or truncated.
//
// When withOverlap is true (prose contexts), each chunk after the first
// records OverlapFromPrev = min(overlapTokens, previous chunk's token
// count) as bookkeeping metadata; no text is duplicated between chunks,
// since the contract only requires that chunks jointly cover the file's
// content with non-decreasing offsets, not that overlap text appear
// twice in storage.
func packLines(doc *document, startLine, endLine, targetTokens, overlapTokens int, withOverlap bool) []Chunk {
	var chunks []Chunk
	if startLine > endLine {
		return chunks
	}

	segStart := startLine
	segTokens := 0
	prevTokens := 0

	flush := func(segEnd int) {
		content, start, end := doc.span(segStart, segEnd)
		if content == "" {
			return
		}
		overlap := 0
		if withOverlap && len(chunks) > 0 {
			if overlapTokens < prevTokens {
				overlap = overlapTokens
			} else {
				overlap = prevTokens
			}
		}
		chunks = append(chunks, Chunk{
			Content:         content,
			StartChar:       start,
			EndChar:         end,
			OverlapFromPrev: overlap,
		})
		prevTokens = EstimateTokens(content)
	}

	for line := startLine; line <= endLine; line++ {
		lineTokens := EstimateTokens(doc.lines[line])

		if segTokens > 0 && segTokens+lineTokens > targetTokens {
			flush(line - 1)
			segStart = line
			segTokens = 0
		}

		if lineTokens > targetTokens {
			// This single line alone exceeds the budget: if it's
			// starting a fresh segment, emit it alone; otherwise the
			// flush above already closed the prior segment.
			flush(line)
			segStart = line + 1
			segTokens = 0
			continue
		}

		segTokens += lineTokens
	}

	if segStart <= endLine {
		flush(endLine)
	}

	return chunks
}
