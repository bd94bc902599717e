package coding

import (
	"fmt"
	"math"
	"strings"

	"github.com/aurevtech/coder/internal/catalog"
)

// ReadinessScorer applies a linear penalty model over the suggestions and
// compliance edits, starting from 1.0. Issues and actions are emitted in
// penalty-table order: NCCI, MUE, LCD/NCD, payer, low confidence, flags.
type ReadinessScorer struct {
	cat    *catalog.Catalog
	policy Policy
}

func NewReadinessScorer(cat *catalog.Catalog, policy Policy) *ReadinessScorer {
	return &ReadinessScorer{cat: cat, policy: policy}
}

// Score computes the claim readiness result. SubmitReady here reflects the
// score threshold only; the orchestrator clears it when any processing
// error accumulated.
func (r *ReadinessScorer) Score(suggestions []CodeSuggestion, edits *ComplianceEdits) Readiness {
	score := 1.0
	issues := []string{}
	actions := []string{}

	for _, e := range edits.NCCIPTP {
		if e.Status != StatusBundled && e.Status != StatusViolation {
			continue
		}
		score -= r.policy.PenaltyNCCI
		issues = append(issues, e.Detail)
		if e.Suggested != "" {
			actions = append(actions, fmt.Sprintf("apply modifier %s to %s", e.Suggested, e.Codes[len(e.Codes)-1]))
		} else {
			actions = append(actions, fmt.Sprintf("remove %s or bill it on a separate claim", e.Codes[len(e.Codes)-1]))
		}
	}
	for _, e := range edits.MUE {
		if e.Status != StatusExceeded {
			continue
		}
		score -= r.policy.PenaltyMUE
		issues = append(issues, e.Detail)
		actions = append(actions, fmt.Sprintf("reduce units of %s to %d or split billing across dates of service", e.Codes[0], r.cat.MUELimit(e.Codes[0])))
	}
	for _, e := range edits.LCDNCD {
		if e.Status != StatusUnmet {
			continue
		}
		score -= r.policy.PenaltyLCD
		issues = append(issues, e.Detail)
		actions = append(actions, fmt.Sprintf("add a covered supporting diagnosis for %s", e.Codes[0]))
	}
	for _, e := range edits.PayerRules {
		if e.Status != StatusViolation {
			continue
		}
		score -= r.policy.PenaltyPayer
		issues = append(issues, e.Detail)
		if e.Suggested != "" {
			actions = append(actions, fmt.Sprintf("apply modifier %s to %s", e.Suggested, e.Codes[0]))
		} else {
			actions = append(actions, fmt.Sprintf("review payer billing rules for %s", e.Codes[0]))
		}
	}
	for _, s := range suggestions {
		if s.Confidence < r.policy.ConfidenceFlagThreshold {
			score -= r.policy.PenaltyLowConfidence
			issues = append(issues, fmt.Sprintf("low confidence (%.2f) on %s %s", s.Confidence, s.System, s.Code))
			actions = append(actions, fmt.Sprintf("verify documentation supporting %s", s.Code))
		}
	}
	for _, s := range suggestions {
		if len(s.Flags) == 0 {
			continue
		}
		score -= r.policy.PenaltyFlagged
		issues = append(issues, fmt.Sprintf("%s %s flagged: %s", s.System, s.Code, strings.Join(s.Flags, ", ")))
		actions = append(actions, fmt.Sprintf("resolve %s flag on %s", s.Flags[0], s.Code))
	}

	score = math.Round(math.Min(1.0, math.Max(0.0, score))*100) / 100
	return Readiness{
		Score:       score,
		Issues:      issues,
		Actions:     actions,
		SubmitReady: score >= r.policy.SubmitThreshold,
	}
}
