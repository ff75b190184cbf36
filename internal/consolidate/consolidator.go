// Package consolidate merges primary and secondary extractions into the
// terminal enriched record.
package consolidate

import (
	"github.com/andrelmbackes/rpv-crawler/internal/parser"
	"github.com/andrelmbackes/rpv-crawler/internal/pipeline"
)

// kindOrder fixes amount ordering so consolidation is deterministic and
// re-running it on the same inputs yields byte-identical output.
var kindOrder = []pipeline.AmountKind{
	pipeline.AmountGross,
	pipeline.AmountNet,
	pipeline.AmountInterest,
	pipeline.AmountAttorneyFees,
}

// Consolidate builds the EnrichedPublication for one process number.
// secondary is nil when the lookup failed or found nothing; the record then
// rests solely on the primary extraction and is graded degraded. Field
// policy: secondary amounts and dates win (they reflect the authoritative
// judicial calculation), primary is the fallback; lawyers are the union of
// both sources, deduplicated by OAB number then normalized name, each entry
// tagged with every source it came from.
func Consolidate(primary pipeline.RawPublication, secondary *pipeline.SecondaryRecord) pipeline.EnrichedPublication {
	pub := pipeline.EnrichedPublication{
		ProcessNumber: primary.ProcessNumber,
		Authors:       append([]string(nil), primary.Authors...),
		Defendant:     primary.Defendant,
		Content:       primary.RawContent,
		Confidence:    pipeline.ConfidenceDegraded,
	}

	pub.Amounts = mergeAmounts(primary.Amounts, secondaryAmounts(secondary))
	pub.Lawyers = mergeLawyers(primary.Lawyers, secondaryLawyers(secondary))

	pub.PublicationDate = primary.Date
	pub.AvailabilityDate = primary.Date
	contributed := false
	if secondary != nil {
		if secondary.PublicationDate != "" {
			pub.PublicationDate = secondary.PublicationDate
			contributed = true
		}
		if secondary.AvailabilityDate != "" {
			pub.AvailabilityDate = secondary.AvailabilityDate
			contributed = true
		}
		if len(secondary.Amounts) > 0 || len(secondary.Lawyers) > 0 {
			contributed = true
		}
	}
	if contributed {
		pub.Confidence = pipeline.ConfidenceHigh
	}
	return pub
}

func secondaryAmounts(s *pipeline.SecondaryRecord) []pipeline.Amount {
	if s == nil {
		return nil
	}
	return s.Amounts
}

func secondaryLawyers(s *pipeline.SecondaryRecord) []pipeline.Lawyer {
	if s == nil {
		return nil
	}
	return s.Lawyers
}

// mergeAmounts keeps one amount per kind, in canonical kind order. The
// secondary value wins when present for a kind; otherwise the primary value
// is the fallback. Kinds absent from both stay absent.
func mergeAmounts(primary, secondary []pipeline.Amount) []pipeline.Amount {
	byKind := map[pipeline.AmountKind]pipeline.Amount{}
	for _, a := range primary {
		a.Source = pipeline.SourcePrimary
		byKind[a.Kind] = a
	}
	for _, a := range secondary {
		a.Source = pipeline.SourceSecondary
		byKind[a.Kind] = a
	}
	var out []pipeline.Amount
	for _, kind := range kindOrder {
		if a, ok := byKind[kind]; ok {
			out = append(out, a)
		}
	}
	return out
}

// mergeLawyers unions both source lists. Dedup carries each retained entry's
// full provenance, so a lawyer seen in both sources is tagged with both.
func mergeLawyers(primary, secondary []pipeline.Lawyer) []pipeline.Lawyer {
	merged := make([]pipeline.Lawyer, 0, len(primary)+len(secondary))
	for _, l := range primary {
		l.Sources = []pipeline.Source{pipeline.SourcePrimary}
		merged = append(merged, l)
	}
	for _, l := range secondary {
		l.Sources = []pipeline.Source{pipeline.SourceSecondary}
		merged = append(merged, l)
	}
	return parser.DedupLawyers(merged)
}
