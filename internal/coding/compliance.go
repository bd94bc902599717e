package coding

import (
	"fmt"
	"strings"

	"github.com/aurevtech/coder/internal/catalog"
)

// ComplianceChecker runs the four edit families over a suggestion set:
// NCCI procedure-to-procedure bundling, MUE unit limits, LCD/NCD coverage
// policies, and payer-specific rules. Each family is pure over its inputs
// and the catalog, so the families can run in any order.
type ComplianceChecker struct {
	cat    *catalog.Catalog
	policy Policy
}

func NewComplianceChecker(cat *catalog.Catalog, policy Policy) *ComplianceChecker {
	return &ComplianceChecker{cat: cat, policy: policy}
}

// ConflictError reports two payer rules that cannot both be satisfied.
type ConflictError struct {
	RuleA  string
	RuleB  string
	Detail string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting payer rules %s and %s: %s", e.RuleA, e.RuleB, e.Detail)
}

// Check evaluates every family and returns the grouped edits. The only
// error condition is an unresolvable payer rule conflict.
func (c *ComplianceChecker) Check(suggestions []CodeSuggestion, enc Encounter, facts *ClinicalFacts) (*ComplianceEdits, error) {
	edits := NewComplianceEdits()
	edits.NCCIPTP = c.checkNCCI(suggestions)
	edits.MUE = c.checkMUE(suggestions)
	edits.LCDNCD = c.checkLCD(suggestions, facts)

	payer, err := c.checkPayer(suggestions, enc)
	if err != nil {
		return edits, err
	}
	edits.PayerRules = payer
	return edits, nil
}

// checkNCCI examines every unordered pair of procedure codes against the
// bundling table. Pairs absent from the table produce no edit.
func (c *ComplianceChecker) checkNCCI(suggestions []CodeSuggestion) []ComplianceEdit {
	edits := []ComplianceEdit{}
	procs := procedureSuggestions(suggestions)
	for i := 0; i < len(procs); i++ {
		for j := i + 1; j < len(procs); j++ {
			a, b := procs[i], procs[j]
			rule, ok := c.cat.NCCIRule(a.Code, b.Code)
			if !ok {
				continue
			}
			pair := []string{a.Code, b.Code}
			if !rule.Bundled {
				edits = append(edits, ComplianceEdit{
					Family: FamilyNCCIPTP,
					Codes:  pair,
					Status: StatusPass,
					Detail: fmt.Sprintf("%s and %s are separately payable", a.Code, b.Code),
				})
				continue
			}
			if mod := presentOverride(rule, a, b); mod != "" {
				edits = append(edits, ComplianceEdit{
					Family: FamilyNCCIPTP,
					Codes:  pair,
					Status: StatusPass,
					Detail: fmt.Sprintf("bundling of %s with %s overridden by modifier %s", b.Code, a.Code, mod),
				})
				continue
			}
			if rule.ModifierAllowed && len(rule.Modifiers) > 0 {
				edits = append(edits, ComplianceEdit{
					Family:    FamilyNCCIPTP,
					Codes:     pair,
					Status:    StatusBundled,
					Detail:    fmt.Sprintf("%s is bundled into %s; modifier override available", b.Code, a.Code),
					Suggested: rule.Modifiers[0],
				})
			} else {
				edits = append(edits, ComplianceEdit{
					Family: FamilyNCCIPTP,
					Codes:  pair,
					Status: StatusViolation,
					Detail: fmt.Sprintf("%s may not be billed with %s; no modifier override is allowed", b.Code, a.Code),
				})
			}
		}
	}
	return edits
}

func presentOverride(rule catalog.NCCIRule, a, b CodeSuggestion) string {
	if !rule.ModifierAllowed {
		return ""
	}
	for _, mod := range rule.Modifiers {
		if a.HasModifier(mod) || b.HasModifier(mod) {
			return mod
		}
	}
	return ""
}

// checkMUE compares each procedure's units to its catalog limit.
func (c *ComplianceChecker) checkMUE(suggestions []CodeSuggestion) []ComplianceEdit {
	edits := []ComplianceEdit{}
	for _, s := range procedureSuggestions(suggestions) {
		limit := c.cat.MUELimit(s.Code)
		if s.Units > limit {
			edits = append(edits, ComplianceEdit{
				Family: FamilyMUE,
				Codes:  []string{s.Code},
				Status: StatusExceeded,
				Detail: fmt.Sprintf("%d units of %s exceed the MUE limit of %d; reduce units to %d or split billing across dates of service", s.Units, s.Code, limit, limit),
			})
		} else {
			edits = append(edits, ComplianceEdit{
				Family: FamilyMUE,
				Codes:  []string{s.Code},
				Status: StatusPass,
				Detail: fmt.Sprintf("%d unit(s) of %s within MUE limit of %d", s.Units, s.Code, limit),
			})
		}
	}
	return edits
}

// checkLCD verifies that every procedure governed by a coverage policy is
// supported by at least one covered diagnosis among the ICD-10 suggestions
// and extracted indications.
func (c *ComplianceChecker) checkLCD(suggestions []CodeSuggestion, facts *ClinicalFacts) []ComplianceEdit {
	edits := []ComplianceEdit{}
	present := map[string]bool{}
	for _, s := range suggestions {
		if s.System == "ICD10" {
			present[s.Code] = true
		}
	}
	if facts != nil {
		for _, ind := range facts.Indications {
			present[ind] = true
		}
	}
	for _, s := range procedureSuggestions(suggestions) {
		for _, pol := range c.cat.PoliciesForCode(s.Code) {
			covered := ""
			for _, icd := range pol.CoveredICD10 {
				if present[icd] {
					covered = icd
					break
				}
			}
			if covered != "" {
				edits = append(edits, ComplianceEdit{
					Family: FamilyLCDNCD,
					Codes:  []string{s.Code},
					Status: StatusPass,
					Detail: fmt.Sprintf("policy %s satisfied: %s supports %s", pol.PolicyID, covered, s.Code),
				})
			} else {
				missing := "supporting diagnosis"
				if len(pol.RequiredDocs) > 0 {
					missing = pol.RequiredDocs[0]
				}
				edits = append(edits, ComplianceEdit{
					Family: FamilyLCDNCD,
					Codes:  []string{s.Code},
					Status: StatusUnmet,
					Detail: fmt.Sprintf("policy %s (%s) requires a covered diagnosis for %s; missing documentation: %s", pol.PolicyID, pol.Name, s.Code, missing),
				})
			}
		}
	}
	return edits
}

var bilateralModifiers = map[string][]string{
	"50":    {"50"},
	"RT_LT": {"RT", "LT"},
}

// checkPayer applies the matched payer profiles: bilateral modifier
// preference, telehealth modifier requirements, and frequency limits.
// Payers matching more than one profile with incompatible demands produce
// a ConflictError instead of edits.
func (c *ComplianceChecker) checkPayer(suggestions []CodeSuggestion, enc Encounter) ([]ComplianceEdit, error) {
	profiles := c.cat.PayerProfiles(enc.Payer)
	if err := payerConflict(profiles, suggestions, enc); err != nil {
		return nil, err
	}
	prof := profiles[0]
	edits := []ComplianceEdit{}

	// bilateral preference: a suggestion carrying the other convention's
	// modifiers violates this payer's billing rules
	for _, s := range procedureSuggestions(suggestions) {
		wrong, want := bilateralMismatch(prof.BilateralPreference, s)
		if wrong != "" {
			edits = append(edits, ComplianceEdit{
				Family:    FamilyPayer,
				Codes:     []string{s.Code},
				Status:    StatusViolation,
				Detail:    fmt.Sprintf("%s requires bilateral procedures billed with %s, not modifier %s", prof.Name, preferenceLabel(prof.BilateralPreference), wrong),
				Suggested: want,
			})
		}
	}

	// telehealth place of service requires the payer's telehealth modifier
	if telehealthPOS(enc.POSCode) {
		for _, s := range suggestions {
			if s.System != "CPT" || !isEMCode(s.Code) {
				continue
			}
			if mod := firstPresent(s, prof.TelehealthModifiers); mod != "" {
				edits = append(edits, ComplianceEdit{
					Family: FamilyPayer,
					Codes:  []string{s.Code},
					Status: StatusPass,
					Detail: fmt.Sprintf("telehealth modifier %s present on %s", mod, s.Code),
				})
			} else if len(prof.TelehealthModifiers) > 0 {
				edits = append(edits, ComplianceEdit{
					Family:    FamilyPayer,
					Codes:     []string{s.Code},
					Status:    StatusViolation,
					Detail:    fmt.Sprintf("%s requires modifier %s on %s for place of service %s", prof.Name, prof.TelehealthModifiers[0], s.Code, enc.POSCode),
					Suggested: prof.TelehealthModifiers[0],
				})
			}
		}
	}

	// frequency limits: per-visit caps are checked against billed units;
	// per-year caps cannot be verified from a single encounter and pass
	// with a follow-up note
	for _, s := range procedureSuggestions(suggestions) {
		limit, ok := prof.FrequencyLimits[s.Code]
		if !ok {
			continue
		}
		switch {
		case limit.PerVisit > 0 && s.Units > limit.PerVisit:
			edits = append(edits, ComplianceEdit{
				Family: FamilyPayer,
				Codes:  []string{s.Code},
				Status: StatusViolation,
				Detail: fmt.Sprintf("%s limits %s to %d per visit; %d units billed", prof.Name, s.Code, limit.PerVisit, s.Units),
			})
		case limit.PerYear > 0:
			edits = append(edits, ComplianceEdit{
				Family: FamilyPayer,
				Codes:  []string{s.Code},
				Status: StatusPass,
				Detail: fmt.Sprintf("%s limits %s to %d per year; verify the annual count before submission", prof.Name, s.Code, limit.PerYear),
			})
		default:
			edits = append(edits, ComplianceEdit{
				Family: FamilyPayer,
				Codes:  []string{s.Code},
				Status: StatusPass,
				Detail: fmt.Sprintf("%d unit(s) of %s within %s per-visit limit", s.Units, s.Code, prof.Name),
			})
		}
	}
	return edits, nil
}

// payerConflict detects demands that cannot all be satisfied when a payer
// name matches more than one profile.
func payerConflict(profiles []catalog.PayerProfile, suggestions []CodeSuggestion, enc Encounter) error {
	for i := 0; i < len(profiles); i++ {
		for j := i + 1; j < len(profiles); j++ {
			a, b := profiles[i], profiles[j]
			if a.BilateralPreference != b.BilateralPreference && anyBilateral(suggestions) {
				return &ConflictError{
					RuleA:  a.Name + "-BILAT",
					RuleB:  b.Name + "-BILAT",
					Detail: fmt.Sprintf("%s requires %s while %s requires %s", a.Name, preferenceLabel(a.BilateralPreference), b.Name, preferenceLabel(b.BilateralPreference)),
				}
			}
			if telehealthPOS(enc.POSCode) && disjoint(a.TelehealthModifiers, b.TelehealthModifiers) {
				return &ConflictError{
					RuleA:  a.Name + "-TELE",
					RuleB:  b.Name + "-TELE",
					Detail: fmt.Sprintf("%s accepts only %s while %s accepts only %s for telehealth", a.Name, strings.Join(a.TelehealthModifiers, "/"), b.Name, strings.Join(b.TelehealthModifiers, "/")),
				}
			}
		}
	}
	return nil
}

func bilateralMismatch(pref string, s CodeSuggestion) (wrong, want string) {
	for conv, mods := range bilateralModifiers {
		if conv == pref {
			continue
		}
		for _, mod := range mods {
			if s.HasModifier(mod) {
				return mod, bilateralModifiers[pref][0]
			}
		}
	}
	return "", ""
}

func anyBilateral(suggestions []CodeSuggestion) bool {
	for _, s := range suggestions {
		for _, mods := range bilateralModifiers {
			for _, mod := range mods {
				if s.HasModifier(mod) {
					return true
				}
			}
		}
	}
	return false
}

func preferenceLabel(pref string) string {
	if pref == "RT_LT" {
		return "modifiers RT/LT"
	}
	return "modifier " + pref
}

func telehealthPOS(pos string) bool {
	return pos == "02" || pos == "10"
}

func isEMCode(code string) bool {
	return strings.HasPrefix(code, "992")
}

// disjoint reports whether the two modifier sets share no element.
func disjoint(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return false
			}
		}
	}
	return true
}

func firstPresent(s CodeSuggestion, mods []string) string {
	for _, mod := range mods {
		if s.HasModifier(mod) {
			return mod
		}
	}
	return ""
}

func procedureSuggestions(suggestions []CodeSuggestion) []CodeSuggestion {
	out := make([]CodeSuggestion, 0, len(suggestions))
	for _, s := range suggestions {
		if s.System == "CPT" || s.System == "HCPCS" {
			out = append(out, s)
		}
	}
	return out
}
