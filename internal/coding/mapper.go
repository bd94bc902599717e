package coding

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/aurevtech/coder/internal/catalog"
)

// CodeMapper turns clinical facts into candidate code suggestions with
// modifiers, units, confidence, and rationale, and derives the E/M level
// for the encounter.
type CodeMapper struct {
	cat    *catalog.Catalog
	policy Policy
}

func NewCodeMapper(cat *catalog.Catalog, policy Policy) *CodeMapper {
	return &CodeMapper{cat: cat, policy: policy}
}

// explicit repeat counts like "x 3" or "3 lesions"; units are never
// inferred beyond what the fact states.
var unitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bx\s*(\d{1,2})\b`),
	regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:lesions|sites|wounds|doses|times|units)\b`),
}

var reviewProcedureTerms = []string{"repair", "excision", "biopsy", "destruction"}

// Map produces the ordered suggestion list for the given facts, plus the
// list of facts that matched nothing in the catalog (coverage gaps).
func (m *CodeMapper) Map(facts *ClinicalFacts, enc Encounter) ([]CodeSuggestion, []string) {
	order := factOrderIndex(facts)
	var raw []CodeSuggestion
	var gaps []string

	raw = append(raw, m.suggestDiagnoses(facts, order, &gaps)...)
	raw = append(raw, m.suggestProcedures(facts, order, &gaps)...)
	if em := m.suggestEM(facts, enc, order); em != nil {
		raw = append(raw, *em)
	}

	merged := m.deduplicate(raw)
	for i := range merged {
		merged[i].Confidence = roundConfidence(merged[i].Confidence)
		if merged[i].Confidence < m.policy.ConfidenceFlagThreshold && !merged[i].HasFlag(FlagNeedsReview) {
			merged[i].Flags = append(merged[i].Flags, FlagNeedsReview)
		}
	}
	sortSuggestions(merged)
	return merged, gaps
}

func (m *CodeMapper) suggestDiagnoses(facts *ClinicalFacts, order map[string]int, gaps *[]string) []CodeSuggestion {
	var out []CodeSuggestion
	for _, ind := range facts.Indications {
		if !m.cat.KnownCode(ind) || catalog.CodeSystem(ind) != "ICD10" {
			continue
		}
		out = append(out, CodeSuggestion{
			Code:        ind,
			System:      "ICD10",
			Description: m.cat.Description(ind),
			Modifiers:   []string{},
			Units:       1,
			Rationale:   "Direct diagnostic code from clinical documentation: " + ind,
			Confidence:  0.90,
			Flags:       []string{},
			factOrder:   order[strings.ToLower(ind)],
		})
	}
	for _, problem := range facts.Problems {
		codes := m.cat.CodesForTerm(problem, m.policy.FuzzyMinTermLen)
		matched := false
		for _, code := range codes {
			if catalog.CodeSystem(code) != "ICD10" {
				continue
			}
			matched = true
			out = append(out, CodeSuggestion{
				Code:        code,
				System:      "ICD10",
				Description: m.cat.Description(code),
				Modifiers:   []string{},
				Units:       1,
				Rationale:   "Mapped from clinical problem: " + problem,
				Confidence:  m.diagnosisConfidence(problem, code),
				Flags:       []string{},
				factOrder:   order[strings.ToLower(problem)],
			})
		}
		if !matched && len(codes) == 0 {
			*gaps = append(*gaps, "problems: "+problem)
		}
	}
	return out
}

func (m *CodeMapper) suggestProcedures(facts *ClinicalFacts, order map[string]int, gaps *[]string) []CodeSuggestion {
	var out []CodeSuggestion
	scan := func(category string, entries []string) {
		for _, fact := range entries {
			codes := m.cat.CodesForTerm(fact, m.policy.FuzzyMinTermLen)
			matched := false
			for _, code := range codes {
				system := catalog.CodeSystem(code)
				if system != "CPT" && system != "HCPCS" {
					continue
				}
				matched = true
				out = append(out, CodeSuggestion{
					Code:        code,
					System:      system,
					Description: m.cat.Description(code),
					Modifiers:   []string{},
					Units:       explicitUnits(fact),
					Rationale:   "Mapped from " + strings.TrimSuffix(category, "s") + ": " + fact,
					Confidence:  m.procedureConfidence(fact, code),
					Flags:       m.procedureFlags(fact, facts),
					factOrder:   order[strings.ToLower(fact)],
				})
			}
			if !matched && len(codes) == 0 {
				*gaps = append(*gaps, category+": "+fact)
			}
		}
	}
	scan("procedures", facts.Procedures)
	scan("orders", facts.Orders)
	scan("imaging_labs", facts.ImagingLabs)
	return out
}

// suggestEM derives the evaluation and management code from encounter
// complexity. Lack of exam and decision-making evidence caps the level
// at the lowest tier.
func (m *CodeMapper) suggestEM(facts *ClinicalFacts, enc Encounter, order map[string]int) *CodeSuggestion {
	if facts.Empty() {
		return nil
	}
	level := m.complexityLevel(facts)
	flags := []string{}
	if len(facts.Findings) == 0 && len(facts.Orders) == 0 && len(facts.Procedures) == 0 {
		level = "low"
		flags = append(flags, FlagNeedsReview)
	}
	if len(facts.Problems) == 0 && len(facts.Findings) == 0 {
		flags = append(flags, FlagMissingDocs)
	}
	if enc.POSCode == "02" || enc.POSCode == "10" {
		// telehealth modifier requirements vary by payer
		flags = append(flags, FlagCheckPayerPolicy)
	}

	newPatient := strings.Contains(strings.ToLower(enc.ProviderType), "new")
	code := m.cat.EMCode(level, newPatient, enc.POSCode)
	if code == "" {
		return nil
	}

	confidence := m.policy.EMBaseConfidence
	if len(facts.Problems) > 0 && len(facts.Findings) > 0 {
		confidence += m.policy.CorroborationBoost
	}

	modifiers := []string{}
	if len(facts.Procedures) > 0 && len(facts.Problems) > 1 {
		// significant, separately identifiable E/M on a procedure day
		modifiers = append(modifiers, "25")
	}

	return &CodeSuggestion{
		Code:        code,
		System:      "CPT",
		Description: m.cat.Description(code),
		Modifiers:   modifiers,
		Units:       1,
		Rationale:   fmt.Sprintf("E/M code for %s complexity encounter", level),
		Confidence:  math.Min(1.0, confidence),
		Flags:       flags,
		factOrder:   emFactOrder(facts, order),
	}
}

func (m *CodeMapper) complexityLevel(facts *ClinicalFacts) string {
	score := minInt(len(facts.Problems), 3) +
		minInt(len(facts.Procedures), 2) +
		minInt(len(facts.Orders), 2)
	switch {
	case score >= 5:
		return "high"
	case score >= 3:
		return "moderate"
	default:
		return "low"
	}
}

func (m *CodeMapper) diagnosisConfidence(problem, code string) float64 {
	c := m.policy.ICDBaseConfidence
	desc := strings.ToLower(m.cat.Description(code))
	p := strings.ToLower(problem)
	if strings.Contains(desc, p) || strings.Contains(p, desc) {
		c += m.policy.CorroborationBoost
	}
	if !m.cat.ExactTerm(p) {
		c -= m.policy.PartialMatchPenalty
	}
	if strings.HasSuffix(code, ".9") || strings.Contains(desc, "unspecified") {
		c -= m.policy.UnspecifiedPenalty
	}
	return clampConfidence(c)
}

func (m *CodeMapper) procedureConfidence(fact, code string) float64 {
	c := m.policy.CPTBaseConfidence
	if !m.cat.ExactTerm(fact) {
		c -= m.policy.PartialMatchPenalty
	}
	desc := strings.ToLower(m.cat.Description(code))
	if strings.Contains(desc, "unlisted") {
		c -= m.policy.UnspecifiedPenalty
	}
	return clampConfidence(c)
}

func (m *CodeMapper) procedureFlags(fact string, facts *ClinicalFacts) []string {
	flags := []string{}
	if len(facts.Indications) == 0 {
		flags = append(flags, FlagMissingDocs)
	}
	lower := strings.ToLower(fact)
	for _, term := range reviewProcedureTerms {
		if strings.Contains(lower, term) {
			flags = append(flags, FlagNeedsReview)
			break
		}
	}
	return flags
}

// deduplicate merges identical (code, system) pairs, keeping the highest
// confidence and the union of modifiers, flags, and rationale. A code
// corroborated by more than one independent fact earns a boost.
func (m *CodeMapper) deduplicate(suggestions []CodeSuggestion) []CodeSuggestion {
	type key struct{ code, system string }
	index := map[key]int{}
	var out []CodeSuggestion
	corroborated := map[key]map[string]bool{}

	for _, s := range suggestions {
		k := key{s.Code, s.System}
		if corroborated[k] == nil {
			corroborated[k] = map[string]bool{}
		}
		corroborated[k][s.Rationale] = true

		i, ok := index[k]
		if !ok {
			index[k] = len(out)
			out = append(out, s)
			continue
		}
		kept := &out[i]
		if s.Confidence > kept.Confidence {
			kept.Confidence = s.Confidence
		}
		kept.Modifiers = unionStrings(kept.Modifiers, s.Modifiers)
		kept.Flags = unionStrings(kept.Flags, s.Flags)
		if !strings.Contains(kept.Rationale, s.Rationale) {
			kept.Rationale += "; " + s.Rationale
		}
		if s.Units > kept.Units {
			kept.Units = s.Units
		}
		if s.factOrder < kept.factOrder {
			kept.factOrder = s.factOrder
		}
	}

	for i := range out {
		k := key{out[i].Code, out[i].System}
		if len(corroborated[k]) > 1 {
			out[i].Confidence = clampConfidence(out[i].Confidence + m.policy.CorroborationBoost)
		}
	}
	return out
}

// sortSuggestions orders by system group (CPT/HCPCS before ICD-10), then
// descending confidence, then original fact order.
func sortSuggestions(s []CodeSuggestion) {
	sort.SliceStable(s, func(i, j int) bool {
		gi, gj := systemGroup(s[i].System), systemGroup(s[j].System)
		if gi != gj {
			return gi < gj
		}
		if s[i].Confidence != s[j].Confidence {
			return s[i].Confidence > s[j].Confidence
		}
		return s[i].factOrder < s[j].factOrder
	})
}

func systemGroup(system string) int {
	if system == "ICD10" {
		return 1
	}
	return 0
}

// factOrderIndex assigns each fact phrase its first-appearance position
// across all categories, for stable tie-breaking.
func factOrderIndex(facts *ClinicalFacts) map[string]int {
	order := map[string]int{}
	for _, e := range facts.All() {
		key := strings.ToLower(e)
		if _, ok := order[key]; !ok {
			order[key] = len(order)
		}
	}
	return order
}

func emFactOrder(facts *ClinicalFacts, order map[string]int) int {
	if len(facts.Problems) > 0 {
		return order[strings.ToLower(facts.Problems[0])]
	}
	return len(order)
}

func explicitUnits(fact string) int {
	for _, re := range unitPatterns {
		if m := re.FindStringSubmatch(fact); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				return n
			}
		}
	}
	return 1
}

func unionStrings(a, b []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func roundConfidence(c float64) float64 {
	return math.Round(c*100) / 100
}

func clampConfidence(c float64) float64 {
	return math.Min(1.0, math.Max(0.1, c))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
