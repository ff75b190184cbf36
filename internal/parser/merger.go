package parser

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/andrelmbackes/rpv-crawler/internal/pipeline"
)

// Span is one candidate publication region cut out of a document, ready for
// the content parser.
type Span struct {
	Text   string
	Pages  pipeline.PageRange
	Merged bool
}

var (
	// terminalMarkerRe recognizes the tokens that close a publication:
	// a lawyer/OAB block or the literal preceding the next process number.
	terminalMarkerRe = regexp.MustCompile(`(?i)\(\s*OAB[\s.:]*\d|ADV[.:]|advogad[oa]`)
	processTokenRe   = regexp.MustCompile(`(?i)\bprocesso\b`)
)

// tailWindow bounds how much trailing text is inspected for terminal markers.
const tailWindow = 300

// Merger splits document pages into publication spans and joins a
// publication whose text runs across two consecutive pages. A page is
// consumed into at most one merge, and ambiguous boundaries prefer NOT
// merging: a wrongly joined span corrupts two records, a missed join only
// impoverishes one.
type Merger struct{}

// NewMerger constructs a Merger.
func NewMerger() *Merger {
	return &Merger{}
}

// Split cuts every page at each process-number occurrence and applies the
// cross-page join where the heuristic detects a continuation. Pages are
// numbered from 1.
func (m *Merger) Split(pages []string) []Span {
	var spans []Span
	headConsumed := false
	for i, page := range pages {
		chunks, headOffset := cutPage(page)
		if headConsumed {
			// The leading chunk was already joined onto the previous
			// page's tail.
			if headOffset > 0 {
				chunks = chunks[1:]
			}
			headConsumed = false
		}

		for j, chunk := range chunks {
			last := j == len(chunks)-1
			if last && i+1 < len(pages) && m.shouldJoin(chunk, pages[i+1]) {
				head := pageHead(pages[i+1])
				spans = append(spans, Span{
					Text:   strings.TrimSpace(chunk) + " " + strings.TrimSpace(head),
					Pages:  pipeline.PageRange{First: i + 1, Last: i + 2},
					Merged: true,
				})
				headConsumed = true
				continue
			}
			text := strings.TrimSpace(chunk)
			if text == "" {
				continue
			}
			spans = append(spans, Span{
				Text:  text,
				Pages: pipeline.PageRange{First: i + 1, Last: i + 1},
			})
		}
	}
	return spans
}

// shouldJoin applies the continuation heuristic: the chunk's trailing text
// lacks every terminal marker and the next page opens with continuation
// text carrying no process-number marker.
func (m *Merger) shouldJoin(chunk, nextPage string) bool {
	if pipeline.ProcessNumberPattern().FindString(chunk) == "" {
		return false
	}
	if terminalMarkerRe.MatchString(tail(chunk, tailWindow)) {
		return false
	}
	head := strings.TrimSpace(pageHead(nextPage))
	if head == "" {
		return false
	}
	if pipeline.ProcessNumberPattern().MatchString(head) || processTokenRe.MatchString(head) {
		return false
	}
	return startsLowercase(head)
}

// processPrefixRe matches the "Processo" token that conventionally precedes
// a case number, so a cut never strands it in the previous chunk.
var processPrefixRe = regexp.MustCompile(`(?i)processo(?:\s+n[º°o.]*)?\s*$`)

// cutPage splits a page at each publication opening (the "Processo" token or
// the bare case number). The text before the first opening is a possible
// continuation head and is returned as the first chunk; headOffset reports
// how many leading characters it covers.
func cutPage(page string) ([]string, int) {
	locs := pipeline.ProcessNumberPattern().FindAllStringIndex(page, -1)
	if len(locs) == 0 {
		return []string{page}, len(page)
	}
	starts := make([]int, len(locs))
	for i, loc := range locs {
		starts[i] = openingStart(page, loc[0])
	}

	var chunks []string
	headOffset := starts[0]
	if strings.TrimSpace(page[:headOffset]) != "" {
		chunks = append(chunks, page[:headOffset])
	} else {
		headOffset = 0
	}
	for i, start := range starts {
		end := len(page)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		if end <= start {
			// Two numbers inside one opening; keep them in one chunk.
			continue
		}
		chunks = append(chunks, page[start:end])
	}
	return chunks, headOffset
}

// pageHead returns the text before the first publication opening, or the
// whole page when it contains none.
func pageHead(page string) string {
	loc := pipeline.ProcessNumberPattern().FindStringIndex(page)
	if loc == nil {
		return page
	}
	return page[:openingStart(page, loc[0])]
}

// openingStart walks a case-number position back over its "Processo" prefix.
func openingStart(page string, numStart int) int {
	if m := processPrefixRe.FindStringIndex(page[:numStart]); m != nil {
		return m[0]
	}
	return numStart
}

// startsLowercase reports whether the leading rune is a lowercase letter,
// the signature of mid-sentence continuation text.
func startsLowercase(s string) bool {
	for _, c := range s {
		return unicode.IsLower(c)
	}
	return false
}
