package coding

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aurevtech/coder/internal/catalog"
)

// FactExtractor turns a free-text clinical note plus optional structured
// fields into categorized clinical facts. Extraction is deterministic:
// the same note always yields the same facts in the same order.
type FactExtractor struct {
	cat    *catalog.Catalog
	policy Policy
}

func NewFactExtractor(cat *catalog.Catalog, policy Policy) *FactExtractor {
	return &FactExtractor{cat: cat, policy: policy}
}

// abbreviation expansions applied before any pattern matching. Longer
// forms first so "c/o" never clobbers "w/o".
var abbreviations = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\bc/o\b`), "complains of"},
	{regexp.MustCompile(`(?i)\bs/p\b`), "status post"},
	{regexp.MustCompile(`(?i)\bw/o\b`), "without"},
	{regexp.MustCompile(`(?i)\bw/\B`), "with "},
	{regexp.MustCompile(`(?i)\bpt\b\.?`), "patient"},
	{regexp.MustCompile(`(?i)\bhx\b`), "history"},
	{regexp.MustCompile(`(?i)\bpmh\b`), "past medical history"},
	{regexp.MustCompile(`(?i)\bdx\b`), "diagnosis"},
	{regexp.MustCompile(`(?i)\btx\b`), "treatment"},
	{regexp.MustCompile(`(?i)\byo\b`), "year old"},
	{regexp.MustCompile(`(?i)\by/o\b`), "year old"},
}

var (
	problemPatterns = compilePatterns(
		`chief complaint[:\s]+([^.;\n]+)`,
		`complains? of[:\s]+([^.;\n]+)`,
		`presents? (?:with|for)[:\s]+([^.;\n]+)`,
		`history of[:\s]+([^.;\n]+)`,
		`diagnosis(?: of)?[:\s]+([^.;\n]+)`,
		`assessment[:\s]+([^.;\n]+)`,
		`(?:reports|endorses)[:\s]+([^.;\n]+)`,
	)
	findingPatterns = compilePatterns(
		`(?:physical exam|examination|exam)(?:ination)?[:\s]+([^.;\n]+)`,
		`(?:normal|abnormal|unremarkable)\s+((?:physical )?exam(?:ination)?[^.;\n]*)`,
		`on (?:auscultation|palpation|inspection)[,:\s]+([^.;\n]+)`,
		`noted?[:\s]+([^.;\n]+)`,
	)
	orderPatterns = compilePatterns(
		`order(?:ed|s)?[:\s]+([^.;\n]+)`,
		`plan[:\s]+([^.;\n]+)`,
		`will (?:obtain|order|perform|send)[:\s]*([^.;\n]+)`,
		`recommend(?:ed)?[:\s]+([^.;\n]+)`,
		`prescribed[:\s]+([^.;\n]+)`,
	)
	procedurePatterns = compilePatterns(
		`(?:performed|completed)[:\s]+([^.;\n]+)`,
		`procedure[:\s]+([^.;\n]+)`,
		`underwent[:\s]+([^.;\n]+)`,
	)
	resultPatterns = compilePatterns(
		`(?:results?|findings?|impression)[:\s]+([^.;\n]+)`,
		`(?:shows?|reveals?|demonstrat(?:es|ing))[:\s]+([^.;\n]+)`,
	)
)

var vitalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:bp|blood pressure)[:\s]*(\d{2,3}/\d{2,3})`),
	regexp.MustCompile(`(?i)\b(?:hr|heart rate|pulse)[:\s]*(\d{2,3})\b`),
	regexp.MustCompile(`(?i)\b(?:temp|temperature)[:\s]*(\d{2,3}(?:\.\d)?)`),
}

var medAdminPattern = regexp.MustCompile(
	`(?i)(?:administered|gave|given|injected)\s+([a-z][a-z0-9 \-]*?)\s+(\d+(?:\.\d+)?\s*(?:mg|mcg|g|ml|units?))`)

// doneVerbs mark a lexicon hit as a performed procedure rather than a
// pending order.
var doneVerbs = regexp.MustCompile(
	`(?i)\b(?:performed|completed|done|administered|given|obtained|repaired|sutured|interpreted|drawn|collected|underwent)\b`)

func compilePatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

// Extract builds clinical facts from the note and structured input.
// Structured fields are authoritative and merged after text extraction.
// An error is returned when no evidence of any kind was found.
func (e *FactExtractor) Extract(note string, structured *Structured) (*ClinicalFacts, error) {
	facts := NewClinicalFacts()
	b := &factBuilder{facts: facts, seen: map[string]bool{}, cats: map[string]bool{}}

	cleaned := cleanNote(note)
	if cleaned != "" {
		e.extractFromText(b, cleaned)
	}
	e.mergeStructured(b, structured)
	e.deriveIndications(b)

	if facts.Empty() {
		return facts, fmt.Errorf("no clinical evidence found in note or structured input")
	}
	return facts, nil
}

// factBuilder enforces the dedup rules: a text-derived phrase lands in at
// most one category, while structured entries only dedup within their
// own category.
type factBuilder struct {
	facts *ClinicalFacts
	seen  map[string]bool // lowered phrase, across all categories
	cats  map[string]bool // category + phrase
}

func (b *factBuilder) add(category, phrase string) {
	phrase = cleanTerm(phrase)
	if phrase == "" {
		return
	}
	key := strings.ToLower(phrase)
	if b.seen[key] {
		return
	}
	b.seen[key] = true
	b.cats[category+"|"+key] = true
	b.append(category, phrase)
}

func (b *factBuilder) addAuthoritative(category, phrase string) {
	phrase = cleanTerm(phrase)
	if phrase == "" {
		return
	}
	// indications hold ICD-10 codes, which are conventionally uppercase
	if category == "indications" {
		phrase = strings.ToUpper(phrase)
	}
	key := strings.ToLower(phrase)
	catKey := category + "|" + key
	if b.cats[catKey] {
		return
	}
	b.seen[key] = true
	b.cats[catKey] = true
	b.append(category, phrase)
}

func (b *factBuilder) append(category, phrase string) {
	switch category {
	case "problems":
		b.facts.Problems = append(b.facts.Problems, phrase)
	case "findings":
		b.facts.Findings = append(b.facts.Findings, phrase)
	case "orders":
		b.facts.Orders = append(b.facts.Orders, phrase)
	case "procedures":
		b.facts.Procedures = append(b.facts.Procedures, phrase)
	case "imaging_labs":
		b.facts.ImagingLabs = append(b.facts.ImagingLabs, phrase)
	case "indications":
		b.facts.Indications = append(b.facts.Indications, phrase)
	}
}

func (e *FactExtractor) extractFromText(b *factBuilder, text string) {
	runPatterns := func(category string, patterns []*regexp.Regexp) {
		for _, re := range patterns {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				b.add(category, m[1])
			}
		}
	}
	runPatterns("problems", problemPatterns)
	runPatterns("findings", findingPatterns)
	runPatterns("orders", orderPatterns)
	runPatterns("procedures", procedurePatterns)
	runPatterns("imaging_labs", resultPatterns)

	for _, re := range vitalPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			b.add("findings", "vital sign "+m[1])
		}
	}
	for _, m := range medAdminPattern.FindAllStringSubmatch(text, -1) {
		b.add("procedures", "administered "+strings.TrimSpace(m[1])+" "+strings.TrimSpace(m[2]))
	}

	e.scanLexicon(b, text)
}

// scanLexicon walks every known lexicon phrase against each sentence of
// the note. Terms mapped only to diagnosis codes become problems; terms
// carrying procedure codes become procedures when the sentence has a
// completion verb, otherwise orders.
func (e *FactExtractor) scanLexicon(b *factBuilder, text string) {
	sentences := splitSentences(text)
	for _, term := range e.cat.LexiconTerms() {
		re := termPattern(term)
		for _, sent := range sentences {
			if !re.MatchString(sent) {
				continue
			}
			codes := e.cat.TermCodes(term)
			if allDiagnoses(codes) {
				b.add("problems", term)
			} else if doneVerbs.MatchString(sent) {
				b.add("procedures", term)
			} else {
				b.add("orders", term)
			}
			break
		}
	}
}

func (e *FactExtractor) mergeStructured(b *factBuilder, s *Structured) {
	if s == nil {
		return
	}
	for _, d := range s.Diagnoses {
		b.addAuthoritative("indications", d)
	}
	for _, o := range s.Orders {
		b.addAuthoritative("orders", o)
	}
	for _, p := range s.Procedures {
		b.addAuthoritative("procedures", p)
	}
	if s.Vitals.BP != "" {
		b.addAuthoritative("findings", "vital sign "+s.Vitals.BP)
	}
	if s.Vitals.HR != "" {
		b.addAuthoritative("findings", "vital sign hr "+s.Vitals.HR)
	}
	if s.Vitals.Temp != "" {
		b.addAuthoritative("findings", "vital sign temp "+s.Vitals.Temp)
	}
	for _, m := range s.MedsAdministered {
		parts := []string{"administered", m.Drug}
		if m.Dose != "" {
			parts = append(parts, m.Dose)
		}
		if m.Route != "" {
			parts = append(parts, m.Route)
		}
		b.addAuthoritative("procedures", strings.Join(parts, " "))
	}
}

// deriveIndications maps each recorded problem to its diagnosis codes so
// downstream coverage checks have ICD-10 evidence even when the caller
// supplied no structured diagnoses.
func (e *FactExtractor) deriveIndications(b *factBuilder) {
	for _, p := range b.facts.Problems {
		for _, code := range e.cat.CodesForTerm(p, e.policy.FuzzyMinTermLen) {
			if catalog.CodeSystem(code) == "ICD10" {
				b.addAuthoritative("indications", code)
			}
		}
	}
}

func cleanNote(note string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return ""
	}
	for _, a := range abbreviations {
		note = a.re.ReplaceAllString(note, a.repl)
	}
	return regexp.MustCompile(`[ \t]+`).ReplaceAllString(note, " ")
}

var termCleaner = regexp.MustCompile(`[^\w\s/\.\-]`)

func cleanTerm(s string) string {
	s = termCleaner.ReplaceAllString(s, " ")
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, " .-")
	// a bare connective is noise, not a fact
	switch strings.ToLower(s) {
	case "", "and", "with", "the", "a", "an", "of", "for":
		return ""
	}
	return strings.ToLower(s)
}

func splitSentences(text string) []string {
	return regexp.MustCompile(`[.;\n]+`).Split(text, -1)
}

func termPattern(term string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
}

func allDiagnoses(codes []string) bool {
	for _, c := range codes {
		if catalog.CodeSystem(c) != "ICD10" {
			return false
		}
	}
	return len(codes) > 0
}
