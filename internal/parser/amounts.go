package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/andrelmbackes/rpv-crawler/internal/pipeline"
)

// brNumberRe accepts a Brazilian-formatted monetary number: optional
// dot-separated thousands groups and a mandatory two-digit decimal comma.
var brNumberRe = regexp.MustCompile(`^(?:\d{1,3}(?:\.\d{3})*|\d+),\d{2}$`)

// amountLabelPatterns anchor each amount kind to its Portuguese label in
// publication text. Order fixes the output ordering of ExtractAmounts.
var amountLabelPatterns = []struct {
	kind pipeline.AmountKind
	re   *regexp.Regexp
}{
	{pipeline.AmountGross, regexp.MustCompile(`(?i)valor\s+bruto[^\d]{0,40}?((?:\d{1,3}(?:\.\d{3})*|\d+),\d{2})`)},
	{pipeline.AmountNet, regexp.MustCompile(`(?i)valor\s+l[ií]quido[^\d]{0,40}?((?:\d{1,3}(?:\.\d{3})*|\d+),\d{2})`)},
	{pipeline.AmountInterest, regexp.MustCompile(`(?i)juros\s+morat[óo]rios[^\d]{0,40}?((?:\d{1,3}(?:\.\d{3})*|\d+),\d{2})`)},
	{pipeline.AmountAttorneyFees, regexp.MustCompile(`(?i)honor[áa]rios\s+advocat[íi]cios[^\d]{0,40}?((?:\d{1,3}(?:\.\d{3})*|\d+),\d{2})`)},
}

// ParseAmount converts a Brazilian-formatted monetary string to integer
// cents. The optional "R$" prefix is tolerated. Malformed input reports
// ok=false; a missing amount is absence, never zero, so money is never
// carried as floating point at any stage.
func ParseAmount(raw string) (int64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if !brNumberRe.MatchString(s) {
		return 0, false
	}
	s = strings.ReplaceAll(s, ".", "")
	units, frac, _ := strings.Cut(s, ",")
	u, err := strconv.ParseInt(units, 10, 64)
	if err != nil {
		return 0, false
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, false
	}
	return u*100 + f, true
}

// ExtractAmounts scans text for each labeled amount kind. Kinds whose label
// is absent or whose number is malformed simply do not appear in the result.
func ExtractAmounts(text string) []pipeline.Amount {
	var amounts []pipeline.Amount
	for _, ap := range amountLabelPatterns {
		m := ap.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		cents, ok := ParseAmount(m[1])
		if !ok {
			continue
		}
		amounts = append(amounts, pipeline.Amount{Kind: ap.kind, Cents: cents})
	}
	return amounts
}
