// Package catalog holds the immutable reference dataset the coding pipeline
// reads: procedure and diagnosis code descriptions, MUE limits, NCCI
// procedure-to-procedure pair rules, LCD/NCD coverage policies, payer
// profiles, and the clinical-term lexicon. A Catalog is built once at process
// start and is read-only afterwards; every lookup has a defined fallback for
// unknown keys so gaps in the tables degrade to generic defaults instead of
// failures.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// CPTEntry describes a CPT or HCPCS code.
type CPTEntry struct {
	Description string
	MUELimit    int
}

type pairKey [2]string

// NCCIRule is a procedure-to-procedure bundling rule.
type NCCIRule struct {
	Bundled         bool
	ModifierAllowed bool
	Modifiers       []string
}

// FrequencyLimit caps how often a code may be billed.
type FrequencyLimit struct {
	PerYear  int
	PerVisit int
}

// PayerProfile carries payer-specific billing preferences.
type PayerProfile struct {
	Name                string
	BilateralPreference string // "50" or "RT_LT"
	TelehealthModifiers []string
	FrequencyLimits     map[string]FrequencyLimit
}

// LCDPolicy is a coverage determination: the diagnoses that justify a
// procedure and the documentation it requires.
type LCDPolicy struct {
	PolicyID     string
	Name         string
	Codes        []string
	CoveredICD10 []string
	PerYear      int
	PerEpisode   int
	RequiredDocs []string
}

// Catalog is the process-wide reference dataset. Construct with Default or
// LoadPG; never mutate after construction.
type Catalog struct {
	version   string
	cpt       map[string]CPTEntry
	hcpcs     map[string]CPTEntry
	icd10     map[string]string
	ncci      map[pairKey]NCCIRule
	lexicon   map[string][]string
	modifiers map[string]string
	payers    []PayerProfile
	policies  []LCDPolicy
}

// Default returns the catalog backed by the embedded reference tables.
func Default() *Catalog {
	return &Catalog{
		version:   DatasetVersion,
		cpt:       defaultCPT,
		hcpcs:     defaultHCPCS,
		icd10:     defaultICD10,
		ncci:      defaultNCCI,
		lexicon:   defaultLexicon,
		modifiers: defaultModifiers,
		payers:    defaultPayers,
		policies:  defaultPolicies,
	}
}

// Version identifies the loaded dataset.
func (c *Catalog) Version() string { return c.version }

// CodeSystem classifies a code string into CPT, HCPCS, or ICD10.
// CPT codes are five digits; HCPCS level II codes are a letter followed by
// four digits; everything else in the catalog's shape is ICD-10.
func CodeSystem(code string) string {
	if len(code) == 5 && isDigits(code) {
		return "CPT"
	}
	if len(code) == 5 && code[0] >= 'A' && code[0] <= 'Z' && isDigits(code[1:]) {
		return "HCPCS"
	}
	return "ICD10"
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Description returns the human-readable description for a code in any
// supported system, with a generic placeholder for unknown codes.
func (c *Catalog) Description(code string) string {
	switch CodeSystem(code) {
	case "CPT":
		if e, ok := c.cpt[code]; ok {
			return e.Description
		}
		return unlistedDesc("CPT", code)
	case "HCPCS":
		if e, ok := c.hcpcs[code]; ok {
			return e.Description
		}
		return unlistedDesc("HCPCS", code)
	default:
		if d, ok := c.icd10[code]; ok {
			return d
		}
		return unlistedDesc("ICD-10", code)
	}
}

func unlistedDesc(system, code string) string {
	return fmt.Sprintf("Unlisted %s code %s", system, code)
}

// KnownCode reports whether the code appears in the loaded tables.
func (c *Catalog) KnownCode(code string) bool {
	switch CodeSystem(code) {
	case "CPT":
		_, ok := c.cpt[code]
		return ok
	case "HCPCS":
		_, ok := c.hcpcs[code]
		return ok
	default:
		_, ok := c.icd10[code]
		return ok
	}
}

// MUELimit returns the medically-unlikely-edit unit cap for a procedure
// code. Codes without a published limit default to 1 unit.
func (c *Catalog) MUELimit(code string) int {
	if e, ok := c.cpt[code]; ok && e.MUELimit > 0 {
		return e.MUELimit
	}
	if e, ok := c.hcpcs[code]; ok && e.MUELimit > 0 {
		return e.MUELimit
	}
	return 1
}

// NCCIRule looks up the bundling rule for a code pair in either column
// order. Pairs absent from the table are allowed together.
func (c *Catalog) NCCIRule(a, b string) (NCCIRule, bool) {
	if r, ok := c.ncci[pairKey{a, b}]; ok {
		return r, true
	}
	if r, ok := c.ncci[pairKey{b, a}]; ok {
		return r, true
	}
	return NCCIRule{}, false
}

// CodesForTerm returns the candidate codes for a clinical phrase, combining
// an exact lexicon hit with substring matches in both directions. The result
// is deduplicated and sorted for deterministic downstream ordering. minLen
// guards the fuzzy pass against very short phrases matching everything.
func (c *Catalog) CodesForTerm(term string, minLen int) []string {
	t := strings.ToLower(strings.TrimSpace(term))
	if t == "" {
		return nil
	}
	seen := map[string]bool{}
	for _, code := range c.lexicon[t] {
		seen[code] = true
	}
	if len(t) >= minLen {
		for phrase, codes := range c.lexicon {
			if phrase == t {
				continue
			}
			if strings.Contains(t, phrase) || strings.Contains(phrase, t) {
				for _, code := range codes {
					seen[code] = true
				}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for code := range seen {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// LexiconTerms returns every lexicon phrase in sorted order, for callers
// that scan text against the full term set.
func (c *Catalog) LexiconTerms() []string {
	terms := make([]string, 0, len(c.lexicon))
	for t := range c.lexicon {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

// TermCodes returns the codes for a verbatim lexicon phrase, without fuzzy
// matching.
func (c *Catalog) TermCodes(term string) []string {
	return c.lexicon[strings.ToLower(strings.TrimSpace(term))]
}

// ExactTerm reports whether the phrase is a verbatim lexicon entry, as
// opposed to a fuzzy substring hit.
func (c *Catalog) ExactTerm(term string) bool {
	_, ok := c.lexicon[strings.ToLower(strings.TrimSpace(term))]
	return ok
}

// ModifierMeaning explains a billing modifier.
func (c *Catalog) ModifierMeaning(mod string) string {
	if m, ok := c.modifiers[mod]; ok {
		return m
	}
	return "Unrecognized modifier " + mod
}

// PayerProfiles returns every profile whose name matches the requested payer
// by case-insensitive substring in either direction, preserving table order.
// Unknown payers fall back to the generic profile.
func (c *Catalog) PayerProfiles(payer string) []PayerProfile {
	p := strings.ToLower(strings.TrimSpace(payer))
	var matched []PayerProfile
	for _, prof := range c.payers {
		name := strings.ToLower(prof.Name)
		if p == name || (p != "" && (strings.Contains(p, name) || strings.Contains(name, p))) {
			matched = append(matched, prof)
		}
	}
	if len(matched) == 0 {
		return []PayerProfile{genericPayer}
	}
	return matched
}

// PoliciesForCode returns the coverage policies that govern a procedure
// code, in table order. Most codes have none.
func (c *Catalog) PoliciesForCode(code string) []LCDPolicy {
	var out []LCDPolicy
	for _, pol := range c.policies {
		for _, pc := range pol.Codes {
			if pc == code {
				out = append(out, pol)
				break
			}
		}
	}
	return out
}

// EMCode selects the E/M code for a complexity level given the place of
// service and patient status. POS 23 is the emergency department.
func (c *Catalog) EMCode(level string, newPatient bool, posCode string) string {
	if posCode == "23" {
		switch level {
		case "high":
			return "99284"
		case "moderate":
			return "99283"
		default:
			return "99282"
		}
	}
	if newPatient {
		switch level {
		case "high":
			return "99205"
		case "moderate":
			return "99204"
		default:
			return "99203"
		}
	}
	switch level {
	case "high":
		return "99215"
	case "moderate":
		return "99214"
	default:
		return "99213"
	}
}
