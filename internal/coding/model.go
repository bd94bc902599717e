// Package coding implements the medical coding decision pipeline: clinical
// fact extraction, evidence-grounded code suggestion, layered compliance
// checking, and claim readiness scoring. Every type here is built fresh per
// request and discarded with the response; the only shared state is the
// read-only reference catalog.
package coding

// Engine output format version.
const Version = "AAC-0.2"

// Request modes.
const (
	ModeAnalyze = "analyze"
	ModeExplain = "explain"
)

// SupportedModes lists the request modes the engine accepts, for health
// reporting.
var SupportedModes = []string{ModeAnalyze, ModeExplain}

// Capabilities lists the engine's processing features, for health reporting.
var Capabilities = []string{
	"clinical_fact_extraction",
	"cpt_hcpcs_coding",
	"icd10_coding",
	"ncci_ptp_checking",
	"mue_validation",
	"lcd_ncd_checking",
	"payer_rule_validation",
	"claim_readiness_scoring",
}

// Suggestion flags.
const (
	FlagNeedsReview      = "Needs-Review"
	FlagMissingDocs      = "Missing-Docs"
	FlagCheckPayerPolicy = "Check-Payer-Policy"
)

// Compliance edit families.
const (
	FamilyNCCIPTP = "NCCI_PTP"
	FamilyMUE     = "MUE"
	FamilyLCDNCD  = "LCD_NCD"
	FamilyPayer   = "PAYER"
)

// Compliance edit statuses.
const (
	StatusPass      = "Pass"
	StatusBundled   = "Bundled"
	StatusExceeded  = "Exceeded"
	StatusUnmet     = "Unmet"
	StatusViolation = "Violation"
)

// Error taxonomy.
const (
	ErrInputValidation      = "INPUT_VALIDATION"
	ErrInsufficientEvidence = "INSUFFICIENT_EVIDENCE"
	ErrPolicyConflict       = "POLICY_CONFLICT"
)

// Patient is the demographic slice of the request.
type Patient struct {
	Age int    `json:"age"`
	Sex string `json:"sex"` // F, M, or U
}

// Encounter describes the visit being coded.
type Encounter struct {
	Date         string `json:"date"` // YYYY-MM-DD
	POSCode      string `json:"pos_code"`
	Payer        string `json:"payer"`
	ProviderType string `json:"provider_type"`
}

// Vitals are structured vital-sign readings.
type Vitals struct {
	BP   string `json:"bp"`
	HR   string `json:"hr"`
	Temp string `json:"temp"`
}

// MedAdministered records one in-visit medication administration.
type MedAdministered struct {
	Drug  string `json:"drug"`
	Dose  string `json:"dose"`
	Route string `json:"route"`
	Time  string `json:"time"`
}

// Structured carries structured overrides alongside the free-text note.
// Entries here are authoritative evidence and are merged into the extracted
// facts without textual corroboration.
type Structured struct {
	Diagnoses        []string          `json:"diagnoses"`
	Orders           []string          `json:"orders"`
	Procedures       []string          `json:"procedures"`
	Vitals           Vitals            `json:"vitals"`
	MedsAdministered []MedAdministered `json:"meds_administered"`
}

// Empty reports whether the structured input contributes no evidence.
func (s *Structured) Empty() bool {
	return len(s.Diagnoses) == 0 && len(s.Orders) == 0 && len(s.Procedures) == 0 &&
		len(s.MedsAdministered) == 0 && s.Vitals == (Vitals{})
}

// Request is the boundary input for one coding run.
type Request struct {
	Mode         string     `json:"mode"`
	Patient      Patient    `json:"patient"`
	Encounter    Encounter  `json:"encounter"`
	ClinicalNote string     `json:"clinical_note"`
	Structured   Structured `json:"structured"`
}

// ClinicalFacts is the normalized evidence set extracted from a note and its
// structured overrides. Categories are disjoint by construction and each is
// deduplicated case-insensitively, preserving first-seen order.
type ClinicalFacts struct {
	Problems    []string `json:"problems"`
	Findings    []string `json:"findings"`
	Orders      []string `json:"orders"`
	Procedures  []string `json:"procedures"`
	ImagingLabs []string `json:"imaging_labs"`
	Indications []string `json:"indications"`
}

// NewClinicalFacts returns facts with every category allocated, so the JSON
// projection emits arrays rather than nulls.
func NewClinicalFacts() *ClinicalFacts {
	return &ClinicalFacts{
		Problems:    []string{},
		Findings:    []string{},
		Orders:      []string{},
		Procedures:  []string{},
		ImagingLabs: []string{},
		Indications: []string{},
	}
}

// Empty reports whether no category holds any fact.
func (f *ClinicalFacts) Empty() bool {
	return len(f.Problems) == 0 && len(f.Findings) == 0 && len(f.Orders) == 0 &&
		len(f.Procedures) == 0 && len(f.ImagingLabs) == 0 && len(f.Indications) == 0
}

// All returns every fact across categories in category-major order.
func (f *ClinicalFacts) All() []string {
	out := make([]string, 0,
		len(f.Problems)+len(f.Findings)+len(f.Orders)+
			len(f.Procedures)+len(f.ImagingLabs)+len(f.Indications))
	out = append(out, f.Problems...)
	out = append(out, f.Findings...)
	out = append(out, f.Orders...)
	out = append(out, f.Procedures...)
	out = append(out, f.ImagingLabs...)
	out = append(out, f.Indications...)
	return out
}

// CodeSuggestion is one candidate billing code with its supporting evidence.
// Rationale must reference at least one extracted fact unless the suggestion
// carries the Needs-Review flag.
type CodeSuggestion struct {
	Code        string   `json:"code"`
	System      string   `json:"system"` // CPT, HCPCS, or ICD10
	Description string   `json:"description"`
	Modifiers   []string `json:"modifiers"`
	Units       int      `json:"units"`
	Rationale   string   `json:"rationale"`
	Confidence  float64  `json:"confidence"`
	Flags       []string `json:"flags"`

	// factOrder is the position of the originating fact in extraction order;
	// it breaks confidence ties deterministically and is not serialized.
	factOrder int
}

// HasFlag reports whether the suggestion carries the given flag.
func (s *CodeSuggestion) HasFlag(flag string) bool {
	for _, f := range s.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// HasModifier reports whether the suggestion carries the given modifier.
func (s *CodeSuggestion) HasModifier(mod string) bool {
	for _, m := range s.Modifiers {
		if m == mod {
			return true
		}
	}
	return false
}

// ComplianceEdit is one finding from a compliance family. Codes holds the
// one or two subject codes; Suggested carries the remediation modifier or
// action when one exists.
type ComplianceEdit struct {
	Family    string   `json:"family"`
	Codes     []string `json:"codes"`
	Status    string   `json:"status"`
	Detail    string   `json:"detail"`
	Suggested string   `json:"suggested,omitempty"`
}

// ComplianceEdits groups each family's ordered findings.
type ComplianceEdits struct {
	NCCIPTP    []ComplianceEdit `json:"ncci_ptp"`
	MUE        []ComplianceEdit `json:"mue"`
	LCDNCD     []ComplianceEdit `json:"lcd_ncd"`
	PayerRules []ComplianceEdit `json:"payer_rules"`
}

// NewComplianceEdits returns edits with every family allocated.
func NewComplianceEdits() *ComplianceEdits {
	return &ComplianceEdits{
		NCCIPTP:    []ComplianceEdit{},
		MUE:        []ComplianceEdit{},
		LCDNCD:     []ComplianceEdit{},
		PayerRules: []ComplianceEdit{},
	}
}

// Readiness is the claim readiness verdict.
type Readiness struct {
	Score       float64  `json:"score"`
	Issues      []string `json:"issues"`
	Actions     []string `json:"actions"`
	SubmitReady bool     `json:"submit_ready"`
}

// AuditStep is one entry in the explain-mode audit trace.
type AuditStep struct {
	Step   string `json:"step"`
	Detail string `json:"detail"`
}

// Explanation is the explain-mode narrative; absent in analyze mode.
type Explanation struct {
	Notes      []string    `json:"notes"`
	AuditTrace []AuditStep `json:"audit_trace"`
}

// ErrorEntry is one accumulated processing error.
type ErrorEntry struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response is the boundary output. Field content is byte-for-byte
// reproducible for identical input, GeneratedAt excepted.
type Response struct {
	Version     string           `json:"version"`
	GeneratedAt string           `json:"generated_at"`
	Patient     Patient          `json:"patient"`
	Encounter   Encounter        `json:"encounter"`
	Facts       *ClinicalFacts   `json:"facts"`
	Suggestions []CodeSuggestion `json:"suggestions"`
	Edits       *ComplianceEdits `json:"edits"`
	Readiness   Readiness        `json:"readiness"`
	Explanation *Explanation     `json:"explanation,omitempty"`
	Errors      []ErrorEntry     `json:"errors"`
}
