// Package parser extracts structured publication records from gazette text.
package parser

import (
	"regexp"
	"strings"

	"github.com/andrelmbackes/rpv-crawler/internal/pipeline"
)

// DefaultDefendant is the fixed defendant for this gazette section when the
// text carries no explicit marker.
const DefaultDefendant = "Instituto Nacional do Seguro Social - INSS"

// lawyerTailWindow bounds the end-of-publication region where lawyer blocks
// conventionally appear, just before the next process-number marker.
const lawyerTailWindow = 500

const (
	lawyerName = `(\p{Lu}[\p{L}. '\-]{4,78}?)`
	parenOAB   = `\s*\(\s*OAB[\s.:]*(\d{3,6})\s*(?:/\s*(\p{Lu}{2}))?\s*\)`
)

// lawyerPatterns is the ordered list of mention variants. Separated lists of
// the bare form are covered by matching each pattern globally.
var lawyerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`ADV:\s*` + lawyerName + parenOAB),
	regexp.MustCompile(`ADV\.\s*` + lawyerName + parenOAB),
	regexp.MustCompile(`(?i:advogad[oa]s?)\b[.:\s]*` + lawyerName + parenOAB),
	regexp.MustCompile(lawyerName + parenOAB),
}

var (
	defendantMarkerRe = regexp.MustCompile(`(?i)instituto\s+nacional\s+do\s+seguro\s+social(?:\s*[-–]\s*INSS)?|\bINSS\b`)
	authorSegmentSep  = regexp.MustCompile(`\s*(?:[;,]| e )\s*`)
	nonNameSegment    = regexp.MustCompile(`(?i)requisi[çc][ãa]o|cumprimento|precat[óo]rio|pequeno\s+valor|processo|direito|senten[çc]a|vara|digital|benef[íi]cio|auxílio|aposentadoria`)
	spacesRe          = regexp.MustCompile(`\s+`)
)

// Parser turns one publication span into a RawPublication. A missing process
// number rejects the record; every other missing field leaves a partial
// record, since absence is meaningful downstream.
type Parser struct{}

// New constructs a Parser.
func New() *Parser {
	return &Parser{}
}

// Parse extracts a RawPublication from a single publication span.
func (p *Parser) Parse(text string) (pipeline.RawPublication, error) {
	num := pipeline.ProcessNumberPattern().FindString(text)
	if num == "" {
		return pipeline.RawPublication{}, &pipeline.ParseError{Err: pipeline.ErrNoProcessNumber, Snippet: snippet(text)}
	}

	pub := pipeline.RawPublication{
		ProcessNumber: num,
		RawContent:    text,
		Defendant:     DefaultDefendant,
	}
	pub.Authors = extractAuthors(text, num)
	pub.Lawyers = ExtractLawyers(text)
	pub.Amounts = ExtractAmounts(text)
	return pub, nil
}

// ExtractLawyers applies every mention variant against the full text and
// again against the trailing window, then merges and deduplicates by OAB
// number (preferred) or normalized name.
func ExtractLawyers(text string) []pipeline.Lawyer {
	var found []pipeline.Lawyer
	for _, region := range []string{text, tail(text, lawyerTailWindow)} {
		for _, re := range lawyerPatterns {
			for _, m := range re.FindAllStringSubmatch(region, -1) {
				name := NormalizeLawyerName(m[1])
				if !validLawyerName(name) {
					continue
				}
				found = append(found, pipeline.Lawyer{
					Name:      name,
					OABNumber: m[2],
					OABState:  m[3],
				})
			}
		}
	}
	return DedupLawyers(found)
}

// DedupLawyers collapses repeated mentions. The OAB number is the preferred
// identity key; mentions without one fall back to the normalized name. The
// first mention wins, later ones only fill missing fields.
func DedupLawyers(lawyers []pipeline.Lawyer) []pipeline.Lawyer {
	var out []pipeline.Lawyer
	index := map[string]int{}
	for _, l := range lawyers {
		key := l.OABNumber
		if key == "" {
			key = "name:" + NormalizeLawyerName(l.Name)
		}
		if i, ok := index[key]; ok {
			if out[i].OABState == "" {
				out[i].OABState = l.OABState
			}
			out[i].Sources = mergeSources(out[i].Sources, l.Sources)
			continue
		}
		index[key] = len(out)
		out = append(out, l)
	}
	return out
}

// NormalizeLawyerName upper-cases and collapses whitespace so differently
// cased or spaced mentions of the same person compare equal.
func NormalizeLawyerName(name string) string {
	return strings.ToUpper(strings.TrimSpace(spacesRe.ReplaceAllString(name, " ")))
}

func mergeSources(a, b []pipeline.Source) []pipeline.Source {
	for _, s := range b {
		if !hasSource(a, s) {
			a = append(a, s)
		}
	}
	return a
}

func hasSource(list []pipeline.Source, s pipeline.Source) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// validLawyerName rejects partial matches captured from boilerplate: the
// name must be 6-80 runes with at least two words of two or more characters.
func validLawyerName(name string) bool {
	n := len([]rune(name))
	if n < 6 || n > 80 {
		return false
	}
	words := 0
	for _, w := range strings.Fields(name) {
		if len([]rune(strings.Trim(w, ".'-"))) >= 2 {
			words++
		}
	}
	return words >= 2
}

// extractAuthors reads the dash-separated segments between the process
// number and the defendant marker. Without a marker the author block cannot
// be bounded, so the record stays partial.
func extractAuthors(text, processNumber string) []string {
	start := strings.Index(text, processNumber)
	if start < 0 {
		return nil
	}
	rest := text[start+len(processNumber):]
	loc := defendantMarkerRe.FindStringIndex(rest)
	if loc == nil {
		return nil
	}
	segment := rest[:loc[0]]

	var authors []string
	for _, part := range strings.Split(segment, " - ") {
		part = strings.Trim(part, " -–\t\n")
		if part == "" || nonNameSegment.MatchString(part) {
			continue
		}
		for _, name := range authorSegmentSep.Split(part, -1) {
			name = strings.TrimSpace(name)
			if len([]rune(name)) >= 5 && strings.Contains(name, " ") {
				authors = append(authors, name)
			}
		}
	}
	return authors
}

func tail(s string, window int) string {
	r := []rune(s)
	if len(r) <= window {
		return s
	}
	return string(r[len(r)-window:])
}

func snippet(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) > 60 {
		r = r[:60]
	}
	return string(r)
}
