package coding

import (
	"testing"

	"github.com/aurevtech/coder/internal/catalog"
)

func newTestExtractor() *FactExtractor {
	return NewFactExtractor(catalog.Default(), DefaultPolicy())
}

func TestExtractFromNote(t *testing.T) {
	e := newTestExtractor()
	note := "Patient complains of palpitations. Normal physical examination. An ECG was performed."

	facts, err := e.Extract(note, &Structured{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if len(facts.Problems) != 1 || facts.Problems[0] != "palpitations" {
		t.Errorf("problems = %v, want [palpitations]", facts.Problems)
	}
	if !containsFact(facts.Findings, "physical examination") {
		t.Errorf("findings = %v, want physical examination", facts.Findings)
	}
	if !containsFact(facts.Procedures, "ecg") {
		t.Errorf("procedures = %v, want ecg", facts.Procedures)
	}
	if !containsFact(facts.Indications, "R00.2") {
		t.Errorf("indications = %v, want R00.2", facts.Indications)
	}
}

func TestExtractAbbreviations(t *testing.T) {
	e := newTestExtractor()
	note := "Pt c/o chest pain and shortness of breath."

	facts, err := e.Extract(note, &Structured{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	// c/o expands to "complains of", so the capture fires
	if len(facts.Problems) == 0 {
		t.Fatal("expected problems from abbreviated note")
	}
	if !containsFact(facts.Indications, "R07.89") {
		t.Errorf("indications = %v, want R07.89 for chest pain", facts.Indications)
	}
}

func TestExtractOrderVsProcedure(t *testing.T) {
	e := newTestExtractor()

	// completion verb in the sentence makes the lexicon hit a procedure
	facts, err := e.Extract("Venipuncture was completed without difficulty.", &Structured{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !containsFact(facts.Procedures, "venipuncture") {
		t.Errorf("procedures = %v, want venipuncture", facts.Procedures)
	}

	// no completion verb leaves it a pending order
	facts, err = e.Extract("Plan is chest x-ray for further evaluation.", &Structured{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !containsFact(facts.Orders, "chest x-ray") {
		t.Errorf("orders = %v, want chest x-ray", facts.Orders)
	}
	if containsFact(facts.Procedures, "chest x-ray") {
		t.Errorf("chest x-ray should not appear in procedures: %v", facts.Procedures)
	}
}

func TestExtractVitals(t *testing.T) {
	e := newTestExtractor()
	facts, err := e.Extract("Patient complains of fever. BP 128/82, HR 96, temp 101.2.", &Structured{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !containsFact(facts.Findings, "vital sign 128/82") {
		t.Errorf("findings = %v, want vital sign 128/82", facts.Findings)
	}
	if !containsFact(facts.Findings, "vital sign 96") {
		t.Errorf("findings = %v, want vital sign 96", facts.Findings)
	}
}

func TestExtractStructuredAuthoritative(t *testing.T) {
	e := newTestExtractor()
	s := &Structured{
		Diagnoses:  []string{"I10"},
		Orders:     []string{"urinalysis"},
		Procedures: []string{"b12 injection"},
		Vitals:     Vitals{BP: "118/72"},
		MedsAdministered: []MedAdministered{
			{Drug: "ceftriaxone", Dose: "1 g", Route: "IM"},
		},
	}

	facts, err := e.Extract("", s)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !containsFact(facts.Indications, "I10") {
		t.Errorf("indications = %v, want I10", facts.Indications)
	}
	if !containsFact(facts.Orders, "urinalysis") {
		t.Errorf("orders = %v, want urinalysis", facts.Orders)
	}
	if !containsFact(facts.Procedures, "b12 injection") {
		t.Errorf("procedures = %v, want b12 injection", facts.Procedures)
	}
	if !containsFact(facts.Procedures, "administered ceftriaxone 1 g im") {
		t.Errorf("procedures = %v, want administered ceftriaxone 1 g im", facts.Procedures)
	}
	if !containsFact(facts.Findings, "vital sign 118/72") {
		t.Errorf("findings = %v, want vital sign 118/72", facts.Findings)
	}
}

func TestExtractDeduplication(t *testing.T) {
	e := newTestExtractor()
	note := "Patient complains of cough. Cough noted again. COUGH persists."

	facts, err := e.Extract(note, &Structured{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	count := 0
	for _, p := range facts.Problems {
		if p == "cough" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("cough appears %d times in problems, want 1: %v", count, facts.Problems)
	}
}

func TestExtractNoEvidence(t *testing.T) {
	e := newTestExtractor()

	facts, err := e.Extract("", &Structured{})
	if err == nil {
		t.Fatal("expected error for empty input")
	}
	if facts == nil || !facts.Empty() {
		t.Errorf("expected empty facts alongside the error, got %+v", facts)
	}
}

func TestExtractDeterministic(t *testing.T) {
	e := newTestExtractor()
	note := "Patient complains of palpitations and chest pain. An ECG was performed. Blood draw completed."

	first, err := e.Extract(note, &Structured{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := e.Extract(note, &Structured{})
		if err != nil {
			t.Fatalf("Extract run %d: %v", i, err)
		}
		if !equalStrings(first.All(), again.All()) {
			t.Fatalf("extraction differs across runs:\n%v\n%v", first.All(), again.All())
		}
	}
}

func containsFact(facts []string, want string) bool {
	for _, f := range facts {
		if f == want {
			return true
		}
	}
	return false
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
