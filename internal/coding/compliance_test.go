package coding

import (
	"errors"
	"strings"
	"testing"

	"github.com/aurevtech/coder/internal/catalog"
)

func newTestChecker() *ComplianceChecker {
	return NewComplianceChecker(catalog.Default(), DefaultPolicy())
}

func suggestion(code, system string, units int, modifiers ...string) CodeSuggestion {
	if modifiers == nil {
		modifiers = []string{}
	}
	return CodeSuggestion{
		Code:       code,
		System:     system,
		Modifiers:  modifiers,
		Units:      units,
		Confidence: 0.80,
		Flags:      []string{},
	}
}

func findEdit(edits []ComplianceEdit, code string) *ComplianceEdit {
	for i := range edits {
		for _, c := range edits[i].Codes {
			if c == code {
				return &edits[i]
			}
		}
	}
	return nil
}

func TestNCCIBundledWithOverrideAvailable(t *testing.T) {
	c := newTestChecker()
	suggestions := []CodeSuggestion{
		suggestion("99213", "CPT", 1),
		suggestion("36415", "CPT", 1),
	}
	edits, err := c.Check(suggestions, officeEncounter(), NewClinicalFacts())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(edits.NCCIPTP) != 1 {
		t.Fatalf("got %d NCCI edits, want 1: %+v", len(edits.NCCIPTP), edits.NCCIPTP)
	}
	e := edits.NCCIPTP[0]
	if e.Status != StatusBundled {
		t.Errorf("status = %s, want %s", e.Status, StatusBundled)
	}
	if e.Suggested != "25" {
		t.Errorf("suggested modifier = %q, want 25", e.Suggested)
	}
}

func TestNCCIOverrideModifierPresent(t *testing.T) {
	c := newTestChecker()
	suggestions := []CodeSuggestion{
		suggestion("99213", "CPT", 1, "25"),
		suggestion("36415", "CPT", 1),
	}
	edits, err := c.Check(suggestions, officeEncounter(), NewClinicalFacts())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	e := edits.NCCIPTP[0]
	if e.Status != StatusPass {
		t.Errorf("status = %s, want %s when the override is already applied", e.Status, StatusPass)
	}
	if !strings.Contains(e.Detail, "modifier 25") {
		t.Errorf("detail %q does not name the override", e.Detail)
	}
}

func TestNCCIViolationNoOverride(t *testing.T) {
	c := newTestChecker()
	suggestions := []CodeSuggestion{
		suggestion("85025", "CPT", 1),
		suggestion("80053", "CPT", 1),
	}
	edits, err := c.Check(suggestions, officeEncounter(), NewClinicalFacts())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	e := edits.NCCIPTP[0]
	if e.Status != StatusViolation {
		t.Errorf("status = %s, want %s", e.Status, StatusViolation)
	}
	if !strings.Contains(e.Detail, "no modifier override is allowed") {
		t.Errorf("detail = %q", e.Detail)
	}
}

func TestNCCISeparatelyPayable(t *testing.T) {
	c := newTestChecker()
	suggestions := []CodeSuggestion{
		suggestion("99213", "CPT", 1),
		suggestion("93000", "CPT", 1),
	}
	edits, err := c.Check(suggestions, officeEncounter(), NewClinicalFacts())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	e := edits.NCCIPTP[0]
	if e.Status != StatusPass || !strings.Contains(e.Detail, "separately payable") {
		t.Errorf("edit = %+v, want separately payable pass", e)
	}
}

func TestNCCIUnlistedPairNoEdit(t *testing.T) {
	c := newTestChecker()
	suggestions := []CodeSuggestion{
		suggestion("93000", "CPT", 1),
		suggestion("90471", "CPT", 1),
	}
	edits, err := c.Check(suggestions, officeEncounter(), NewClinicalFacts())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(edits.NCCIPTP) != 0 {
		t.Errorf("pair outside the table produced edits: %+v", edits.NCCIPTP)
	}
}

func TestMUEExceeded(t *testing.T) {
	c := newTestChecker()
	suggestions := []CodeSuggestion{suggestion("36415", "CPT", 4)}
	edits, err := c.Check(suggestions, officeEncounter(), NewClinicalFacts())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	e := findEdit(edits.MUE, "36415")
	if e == nil {
		t.Fatal("no MUE edit for 36415")
	}
	if e.Status != StatusExceeded {
		t.Errorf("status = %s, want %s", e.Status, StatusExceeded)
	}
	if !strings.Contains(e.Detail, "reduce units to 3") {
		t.Errorf("detail %q missing remediation", e.Detail)
	}
}

func TestMUEWithinLimit(t *testing.T) {
	c := newTestChecker()
	suggestions := []CodeSuggestion{suggestion("36415", "CPT", 3)}
	edits, err := c.Check(suggestions, officeEncounter(), NewClinicalFacts())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	e := findEdit(edits.MUE, "36415")
	if e == nil || e.Status != StatusPass {
		t.Errorf("edit = %+v, want pass at the limit", e)
	}
}

func TestLCDCoveredDiagnosisPresent(t *testing.T) {
	c := newTestChecker()
	suggestions := []CodeSuggestion{
		suggestion("93000", "CPT", 1),
		suggestion("R00.2", "ICD10", 1),
	}
	edits, err := c.Check(suggestions, officeEncounter(), NewClinicalFacts())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	e := findEdit(edits.LCDNCD, "93000")
	if e == nil {
		t.Fatal("no LCD edit for 93000")
	}
	if e.Status != StatusPass || !strings.Contains(e.Detail, "R00.2") {
		t.Errorf("edit = %+v, want pass via R00.2", e)
	}
}

func TestLCDCoveredViaIndications(t *testing.T) {
	c := newTestChecker()
	facts := NewClinicalFacts()
	facts.Indications = []string{"I10"}
	suggestions := []CodeSuggestion{suggestion("93000", "CPT", 1)}

	edits, err := c.Check(suggestions, officeEncounter(), facts)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	e := findEdit(edits.LCDNCD, "93000")
	if e == nil || e.Status != StatusPass {
		t.Errorf("edit = %+v, want pass via extracted indication", e)
	}
}

func TestLCDUnmet(t *testing.T) {
	c := newTestChecker()
	suggestions := []CodeSuggestion{suggestion("93000", "CPT", 1)}
	edits, err := c.Check(suggestions, officeEncounter(), NewClinicalFacts())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	e := findEdit(edits.LCDNCD, "93000")
	if e == nil {
		t.Fatal("no LCD edit for 93000")
	}
	if e.Status != StatusUnmet {
		t.Errorf("status = %s, want %s", e.Status, StatusUnmet)
	}
	if !strings.Contains(e.Detail, "L33832") || !strings.Contains(e.Detail, "missing documentation: indication") {
		t.Errorf("detail = %q", e.Detail)
	}
}

func TestPayerBilateralMismatch(t *testing.T) {
	c := newTestChecker()
	// Medicare wants modifier 50, not RT/LT
	suggestions := []CodeSuggestion{suggestion("12001", "CPT", 1, "RT")}
	edits, err := c.Check(suggestions, officeEncounter(), NewClinicalFacts())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	e := findEdit(edits.PayerRules, "12001")
	if e == nil {
		t.Fatal("no payer edit for 12001")
	}
	if e.Status != StatusViolation || e.Suggested != "50" {
		t.Errorf("edit = %+v, want violation suggesting 50", e)
	}
}

func TestPayerTelehealthModifier(t *testing.T) {
	c := newTestChecker()
	enc := officeEncounter()
	enc.Payer = "Medicaid"
	enc.POSCode = "02"

	suggestions := []CodeSuggestion{suggestion("99213", "CPT", 1)}
	edits, err := c.Check(suggestions, enc, NewClinicalFacts())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	e := findEdit(edits.PayerRules, "99213")
	if e == nil {
		t.Fatal("no payer edit for 99213")
	}
	if e.Status != StatusViolation || e.Suggested != "GT" {
		t.Errorf("edit = %+v, want violation suggesting GT", e)
	}

	suggestions = []CodeSuggestion{suggestion("99213", "CPT", 1, "GT")}
	edits, err = c.Check(suggestions, enc, NewClinicalFacts())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	e = findEdit(edits.PayerRules, "99213")
	if e == nil || e.Status != StatusPass {
		t.Errorf("edit = %+v, want pass with GT applied", e)
	}
}

func TestPayerFrequencyPerVisit(t *testing.T) {
	c := newTestChecker()
	enc := officeEncounter()
	enc.Payer = "Medicaid"

	suggestions := []CodeSuggestion{suggestion("17110", "CPT", 4)}
	edits, err := c.Check(suggestions, enc, NewClinicalFacts())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	e := findEdit(edits.PayerRules, "17110")
	if e == nil || e.Status != StatusViolation {
		t.Errorf("edit = %+v, want per-visit violation", e)
	}

	suggestions = []CodeSuggestion{suggestion("17110", "CPT", 2)}
	edits, err = c.Check(suggestions, enc, NewClinicalFacts())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	e = findEdit(edits.PayerRules, "17110")
	if e == nil || e.Status != StatusPass {
		t.Errorf("edit = %+v, want pass within per-visit limit", e)
	}
}

func TestPayerFrequencyPerYear(t *testing.T) {
	c := newTestChecker()
	suggestions := []CodeSuggestion{suggestion("93000", "CPT", 1)}
	edits, err := c.Check(suggestions, officeEncounter(), NewClinicalFacts())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	e := findEdit(edits.PayerRules, "93000")
	if e == nil {
		t.Fatal("no payer edit for 93000")
	}
	// an annual cap cannot be verified from one encounter
	if e.Status != StatusPass || !strings.Contains(e.Detail, "verify the annual count") {
		t.Errorf("edit = %+v, want pass with annual-count note", e)
	}
}

func TestPayerConflictTelehealth(t *testing.T) {
	c := newTestChecker()
	enc := officeEncounter()
	enc.Payer = "Medicaid PPO"
	enc.POSCode = "02"

	suggestions := []CodeSuggestion{suggestion("99213", "CPT", 1)}
	_, err := c.Check(suggestions, enc, NewClinicalFacts())
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
	if !strings.HasSuffix(conflict.RuleA, "-TELE") || !strings.HasSuffix(conflict.RuleB, "-TELE") {
		t.Errorf("rules = %s / %s, want telehealth rule ids", conflict.RuleA, conflict.RuleB)
	}
}

func TestPayerConflictBilateral(t *testing.T) {
	c := newTestChecker()
	enc := officeEncounter()
	enc.Payer = "medicare medicaid dual"

	suggestions := []CodeSuggestion{suggestion("12001", "CPT", 1, "50")}
	_, err := c.Check(suggestions, enc, NewClinicalFacts())
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
	if !strings.HasSuffix(conflict.RuleA, "-BILAT") {
		t.Errorf("rule = %s, want bilateral rule id", conflict.RuleA)
	}
}

func TestPayerNoConflictWithoutTrigger(t *testing.T) {
	c := newTestChecker()
	enc := officeEncounter()
	enc.Payer = "medicare medicaid dual"

	// no bilateral modifier and no telehealth place of service, so the
	// differing profile demands never collide
	suggestions := []CodeSuggestion{suggestion("99213", "CPT", 1)}
	if _, err := c.Check(suggestions, enc, NewClinicalFacts()); err != nil {
		t.Fatalf("Check: %v", err)
	}
}
