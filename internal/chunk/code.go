package chunk

import "regexp"

// boundaryPatterns maps a language tag to the regexes used to locate
// structural boundary lines (functions, classes, interfaces, types,
// structs, traits, impls). A language absent from this table falls back
// to plain line-packing in ChunkText.
var boundaryPatterns = map[string][]*regexp.Regexp{
	"go": {
		regexp.MustCompile(`^func\s`),
		regexp.MustCompile(`^type\s+\w+\s+(struct|interface)\b`),
	},
	"python": {
		regexp.MustCompile(`^\s*def\s`),
		regexp.MustCompile(`^\s*class\s`),
	},
	"javascript": {
		regexp.MustCompile(`^\s*(export\s+)?(default\s+)?(async\s+)?function\s`),
		regexp.MustCompile(`^\s*(export\s+)?(default\s+)?class\s`),
	},
	"typescript": {
		regexp.MustCompile(`^\s*(export\s+)?(default\s+)?(async\s+)?function\s`),
		regexp.MustCompile(`^\s*(export\s+)?(default\s+)?(abstract\s+)?class\s`),
		regexp.MustCompile(`^\s*(export\s+)?interface\s`),
		regexp.MustCompile(`^\s*(export\s+)?type\s+\w+\s*=`),
	},
	"java": {
		regexp.MustCompile(`^\s*(public|private|protected|static|final|abstract|\s)*\s*(class|interface|enum)\s`),
		regexp.MustCompile(`^\s*(public|private|protected|static|final|synchronized|\s)+[\w<>\[\],\s]+\s+\w+\s*\([^;]*$`),
	},
	"csharp": {
		regexp.MustCompile(`^\s*(public|private|protected|internal|static|sealed|abstract|\s)*\s*(class|interface|struct|enum)\s`),
		regexp.MustCompile(`^\s*(public|private|protected|internal|static|virtual|override|async|\s)+[\w<>\[\],\s]+\s+\w+\s*\(`),
	},
	"c": {
		regexp.MustCompile(`^\w[\w\s\*]*\s+\w+\s*\([^;]*\)\s*\{?$`),
		regexp.MustCompile(`^\s*(struct|enum|union)\s+\w+`),
	},
	"cpp": {
		regexp.MustCompile(`^\w[\w\s\*:<>]*\s+\w+\s*\([^;]*\)\s*\{?$`),
		regexp.MustCompile(`^\s*(struct|class|enum)\s+\w+`),
	},
	"rust": {
		regexp.MustCompile(`^\s*(pub(\([\w:]+\))?\s+)?(async\s+)?fn\s`),
		regexp.MustCompile(`^\s*(pub\s+)?struct\s`),
		regexp.MustCompile(`^\s*(pub\s+)?enum\s`),
		regexp.MustCompile(`^\s*(pub\s+)?trait\s`),
		regexp.MustCompile(`^\s*impl\b`),
	},
	"ruby": {
		regexp.MustCompile(`^\s*def\s`),
		regexp.MustCompile(`^\s*class\s`),
		regexp.MustCompile(`^\s*module\s`),
	},
	"php": {
		regexp.MustCompile(`^\s*(public|private|protected|static|abstract|final|\s)*function\s`),
		regexp.MustCompile(`^\s*(abstract\s+)?class\s`),
		regexp.MustCompile(`^\s*interface\s`),
		regexp.MustCompile(`^\s*trait\s`),
	},
}

// chunkCode splits a recognized language's source into intervals between
// structural boundary lines, line-packing any interval that alone
// exceeds the token budget. Code chunks carry no overlap bookkeeping.
func chunkCode(doc *document, opts Options) []Chunk {
	patterns := boundaryPatterns[opts.Language]

	var boundaries []int
	for i, line := range doc.lines {
		for _, re := range patterns {
			if re.MatchString(line) {
				boundaries = append(boundaries, i)
				break
			}
		}
	}

	if len(boundaries) == 0 {
		return packLines(doc, 0, len(doc.lines)-1, opts.TargetTokens, 0, false)
	}

	var intervals []lineRange
	if boundaries[0] > 0 {
		intervals = append(intervals, lineRange{0, boundaries[0] - 1})
	}
	for i, b := range boundaries {
		end := len(doc.lines) - 1
		if i+1 < len(boundaries) {
			end = boundaries[i+1] - 1
		}
		intervals = append(intervals, lineRange{b, end})
	}

	var out []Chunk
	for _, iv := range intervals {
		content, start, end := doc.span(iv.start, iv.end)
		if content == "" {
			continue
		}
		if EstimateTokens(content) <= opts.TargetTokens {
			out = append(out, Chunk{Content: content, StartChar: start, EndChar: end})
			continue
		}
		out = append(out, packLines(doc, iv.start, iv.end, opts.TargetTokens, 0, false)...)
	}
	return out
}
