package coding

import (
	"strings"
	"testing"

	"github.com/aurevtech/coder/internal/catalog"
)

func newTestMapper() *CodeMapper {
	return NewCodeMapper(catalog.Default(), DefaultPolicy())
}

func officeEncounter() Encounter {
	return Encounter{
		Date:         "2025-06-01",
		POSCode:      "11",
		ProviderType: "established",
		Payer:        "Medicare",
	}
}

func palpitationsFacts() *ClinicalFacts {
	f := NewClinicalFacts()
	f.Problems = []string{"palpitations"}
	f.Findings = []string{"physical examination"}
	f.Procedures = []string{"ecg"}
	f.Indications = []string{"R00.2"}
	return f
}

func TestMapOrderingAndConfidence(t *testing.T) {
	m := newTestMapper()
	suggestions, gaps := m.Map(palpitationsFacts(), officeEncounter())

	if len(gaps) != 0 {
		t.Errorf("unexpected coverage gaps: %v", gaps)
	}
	if len(suggestions) != 3 {
		t.Fatalf("got %d suggestions, want 3: %+v", len(suggestions), suggestions)
	}

	want := []struct {
		code       string
		system     string
		confidence float64
	}{
		{"99213", "CPT", 0.90},
		{"93000", "CPT", 0.80},
		{"R00.2", "ICD10", 1.00},
	}
	for i, w := range want {
		s := suggestions[i]
		if s.Code != w.code || s.System != w.system {
			t.Errorf("suggestion %d = %s/%s, want %s/%s", i, s.System, s.Code, w.system, w.code)
		}
		if s.Confidence != w.confidence {
			t.Errorf("%s confidence = %.2f, want %.2f", w.code, s.Confidence, w.confidence)
		}
	}
}

func TestMapDedupCorroboration(t *testing.T) {
	m := newTestMapper()
	suggestions, _ := m.Map(palpitationsFacts(), officeEncounter())

	var diag *CodeSuggestion
	for i := range suggestions {
		if suggestions[i].Code == "R00.2" {
			diag = &suggestions[i]
		}
	}
	if diag == nil {
		t.Fatal("R00.2 not suggested")
	}
	// the structured indication and the extracted problem corroborate
	// each other, so the merged suggestion earns the boost
	if diag.Confidence != 1.00 {
		t.Errorf("corroborated confidence = %.2f, want 1.00", diag.Confidence)
	}
	if !strings.Contains(diag.Rationale, "Direct diagnostic code") ||
		!strings.Contains(diag.Rationale, "Mapped from clinical problem: palpitations") {
		t.Errorf("merged rationale missing a source: %q", diag.Rationale)
	}
}

func TestMapExplicitUnits(t *testing.T) {
	m := newTestMapper()
	f := NewClinicalFacts()
	f.Procedures = []string{"ecg x 3"}

	suggestions, _ := m.Map(f, officeEncounter())
	var ecg *CodeSuggestion
	for i := range suggestions {
		if suggestions[i].Code == "93000" {
			ecg = &suggestions[i]
		}
	}
	if ecg == nil {
		t.Fatalf("93000 not suggested: %+v", suggestions)
	}
	if ecg.Units != 3 {
		t.Errorf("units = %d, want 3", ecg.Units)
	}
	// partial lexicon match, so base confidence takes the penalty
	if ecg.Confidence != 0.65 {
		t.Errorf("confidence = %.2f, want 0.65", ecg.Confidence)
	}
	if !ecg.HasFlag(FlagNeedsReview) {
		t.Errorf("low-confidence suggestion missing %s flag: %v", FlagNeedsReview, ecg.Flags)
	}
}

func TestMapUnitsNeverInferred(t *testing.T) {
	m := newTestMapper()
	f := NewClinicalFacts()
	f.Problems = []string{"palpitations"}
	f.Procedures = []string{"ecg"}

	suggestions, _ := m.Map(f, officeEncounter())
	for _, s := range suggestions {
		if s.Units != 1 {
			t.Errorf("%s units = %d, want 1 without an explicit count", s.Code, s.Units)
		}
	}
}

func TestMapModifier25(t *testing.T) {
	m := newTestMapper()
	f := NewClinicalFacts()
	f.Problems = []string{"palpitations", "chest pain"}
	f.Findings = []string{"physical examination"}
	f.Procedures = []string{"ecg"}

	suggestions, _ := m.Map(f, officeEncounter())
	var em *CodeSuggestion
	for i := range suggestions {
		if suggestions[i].Code == "99214" {
			em = &suggestions[i]
		}
	}
	if em == nil {
		t.Fatalf("expected 99214 for a moderate encounter: %+v", suggestions)
	}
	if !containsFact(em.Modifiers, "25") {
		t.Errorf("modifiers = %v, want 25 for E/M alongside a procedure", em.Modifiers)
	}
}

func TestMapEMLeveling(t *testing.T) {
	m := newTestMapper()
	cases := []struct {
		name      string
		problems  int
		orders    int
		procs     int
		provider  string
		pos       string
		wantCode  string
		wantLevel string
	}{
		{"low established", 1, 1, 0, "established", "11", "99213", "low"},
		{"moderate established", 2, 1, 0, "established", "11", "99214", "moderate"},
		{"high established", 3, 1, 2, "established", "11", "99215", "high"},
		{"moderate new patient", 2, 1, 0, "new patient", "11", "99204", "moderate"},
		{"emergency department", 2, 1, 0, "established", "23", "99283", "moderate"},
	}
	problems := []string{"palpitations", "chest pain", "shortness of breath"}
	orders := []string{"chest x-ray", "urinalysis"}
	procs := []string{"ecg", "blood draw"}

	for _, tc := range cases {
		f := NewClinicalFacts()
		f.Problems = append(f.Problems, problems[:tc.problems]...)
		f.Orders = append(f.Orders, orders[:tc.orders]...)
		f.Procedures = append(f.Procedures, procs[:tc.procs]...)
		f.Findings = []string{"physical examination"}

		enc := officeEncounter()
		enc.ProviderType = tc.provider
		enc.POSCode = tc.pos

		suggestions, _ := m.Map(f, enc)
		found := false
		for _, s := range suggestions {
			if s.Code == tc.wantCode {
				found = true
				if !strings.Contains(s.Rationale, tc.wantLevel) {
					t.Errorf("%s: rationale %q does not name %s complexity", tc.name, s.Rationale, tc.wantLevel)
				}
			}
		}
		if !found {
			t.Errorf("%s: no %s in %+v", tc.name, tc.wantCode, codeList(suggestions))
		}
	}
}

func TestMapEMCappedWithoutEvidence(t *testing.T) {
	m := newTestMapper()
	f := NewClinicalFacts()
	f.Problems = []string{"palpitations", "chest pain", "shortness of breath"}

	suggestions, _ := m.Map(f, officeEncounter())
	var em *CodeSuggestion
	for i := range suggestions {
		if strings.HasPrefix(suggestions[i].Code, "992") {
			em = &suggestions[i]
		}
	}
	if em == nil {
		t.Fatal("no E/M code suggested")
	}
	if em.Code != "99213" {
		t.Errorf("E/M without exam or orders = %s, want low-level 99213", em.Code)
	}
	if !em.HasFlag(FlagNeedsReview) {
		t.Errorf("capped E/M missing %s flag: %v", FlagNeedsReview, em.Flags)
	}
}

func TestMapMissingDocsFlag(t *testing.T) {
	m := newTestMapper()
	f := NewClinicalFacts()
	f.Procedures = []string{"ecg"}

	suggestions, _ := m.Map(f, officeEncounter())
	var ecg *CodeSuggestion
	for i := range suggestions {
		if suggestions[i].Code == "93000" {
			ecg = &suggestions[i]
		}
	}
	if ecg == nil {
		t.Fatal("93000 not suggested")
	}
	if !ecg.HasFlag(FlagMissingDocs) {
		t.Errorf("procedure with no indication missing %s flag: %v", FlagMissingDocs, ecg.Flags)
	}
}

func TestMapCoverageGaps(t *testing.T) {
	m := newTestMapper()
	f := NewClinicalFacts()
	f.Problems = []string{"palpitations", "zebra bites"}
	f.Orders = []string{"crystal gazing"}

	_, gaps := m.Map(f, officeEncounter())
	if !containsFact(gaps, "problems: zebra bites") {
		t.Errorf("gaps = %v, want problems: zebra bites", gaps)
	}
	if !containsFact(gaps, "orders: crystal gazing") {
		t.Errorf("gaps = %v, want orders: crystal gazing", gaps)
	}
}

func TestMapDeterministic(t *testing.T) {
	m := newTestMapper()
	first, _ := m.Map(palpitationsFacts(), officeEncounter())
	for i := 0; i < 5; i++ {
		again, _ := m.Map(palpitationsFacts(), officeEncounter())
		if !equalStrings(codeList(first), codeList(again)) {
			t.Fatalf("ordering differs across runs: %v vs %v", codeList(first), codeList(again))
		}
	}
}

func codeList(suggestions []CodeSuggestion) []string {
	out := make([]string, len(suggestions))
	for i, s := range suggestions {
		out[i] = s.Code
	}
	return out
}
