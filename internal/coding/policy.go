package coding

// Policy collects the tunable heuristic constants of the pipeline: base
// confidences, the flag threshold, the fuzzy-match guard, and the readiness
// penalty table. Keeping them in one named structure lets deployments adjust
// scoring policy without touching the evaluation logic.
type Policy struct {
	// Confidence assignment.
	ICDBaseConfidence   float64
	CPTBaseConfidence   float64
	EMBaseConfidence    float64
	CorroborationBoost  float64 // per additional independent supporting fact
	PartialMatchPenalty float64 // supporting phrase was only a fuzzy match
	UnspecifiedPenalty  float64 // "unspecified" / .9 diagnosis codes

	// ConfidenceFlagThreshold marks suggestions below it Needs-Review and
	// triggers the low-confidence readiness penalty.
	ConfidenceFlagThreshold float64

	// FuzzyMinTermLen is the minimum phrase length eligible for substring
	// lexicon matching.
	FuzzyMinTermLen int

	// Readiness penalty table, subtracted from 1.0.
	PenaltyNCCI          float64 // per unresolved bundling pair
	PenaltyMUE           float64 // per exceeded unit limit
	PenaltyLCD           float64 // per unmet coverage policy
	PenaltyPayer         float64 // per payer rule violation
	PenaltyLowConfidence float64 // per suggestion below the flag threshold
	PenaltyFlagged       float64 // per suggestion carrying any flag

	// SubmitThreshold is the minimum score for submit_ready.
	SubmitThreshold float64
}

// DefaultPolicy returns the shipped scoring policy.
func DefaultPolicy() Policy {
	return Policy{
		ICDBaseConfidence:   0.70,
		CPTBaseConfidence:   0.80,
		EMBaseConfidence:    0.80,
		CorroborationBoost:  0.10,
		PartialMatchPenalty: 0.15,
		UnspecifiedPenalty:  0.10,

		ConfidenceFlagThreshold: 0.70,
		FuzzyMinTermLen:         4,

		PenaltyNCCI:          0.20,
		PenaltyMUE:           0.10,
		PenaltyLCD:           0.10,
		PenaltyPayer:         0.10,
		PenaltyLowConfidence: 0.05,
		PenaltyFlagged:       0.05,

		SubmitThreshold: 0.80,
	}
}
