package coding

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aurevtech/coder/internal/catalog"
)

// Pipeline stages, in execution order. A failure at any stage moves the
// run directly to stageFailed; no stage is re-entered.
const (
	stageValidating = "Validating"
	stageExtracting = "Extracting"
	stageMapping    = "Mapping"
	stageChecking   = "Checking"
	stageScoring    = "Scoring"
	stageAssembling = "Assembling"
	stageDone       = "Done"
	stageFailed     = "Failed"
)

// Engine orchestrates one coding run: validate, extract, map, check,
// score, assemble. Engines are safe for concurrent use; all per-request
// state lives on the stack of Process.
type Engine struct {
	cat       *catalog.Catalog
	policy    Policy
	extractor *FactExtractor
	mapper    *CodeMapper
	checker   *ComplianceChecker
	scorer    *ReadinessScorer
	log       zerolog.Logger
	now       func() time.Time
}

func NewEngine(cat *catalog.Catalog, policy Policy, log zerolog.Logger) *Engine {
	return &Engine{
		cat:       cat,
		policy:    policy,
		extractor: NewFactExtractor(cat, policy),
		mapper:    NewCodeMapper(cat, policy),
		checker:   NewComplianceChecker(cat, policy),
		scorer:    NewReadinessScorer(cat, policy),
		log:       log,
		now:       time.Now,
	}
}

// run tracks one request's progress through the pipeline.
type run struct {
	state string
	trace []AuditStep
	gaps  []string
	errs  []ErrorEntry
}

func (r *run) enter(state, detail string) {
	r.state = state
	r.trace = append(r.trace, AuditStep{Step: state, Detail: detail})
}

func (r *run) fail(code, message string) {
	r.errs = append(r.errs, ErrorEntry{Code: code, Message: message})
	r.state = stageFailed
	r.trace = append(r.trace, AuditStep{Step: stageFailed, Detail: code + ": " + message})
}

// Process executes the full pipeline for one request. It never returns an
// error; failures surface in the response's errors list with the pipeline
// stopped at the failing stage.
func (e *Engine) Process(req Request) *Response {
	mode := req.Mode
	if mode == "" {
		mode = ModeAnalyze
	}
	r := &run{}
	resp := &Response{
		Version:     Version,
		GeneratedAt: e.now().UTC().Format(time.RFC3339),
		Patient:     req.Patient,
		Encounter:   req.Encounter,
		Facts:       NewClinicalFacts(),
		Suggestions: []CodeSuggestion{},
		Edits:       NewComplianceEdits(),
		Readiness:   Readiness{Issues: []string{}, Actions: []string{}},
		Errors:      []ErrorEntry{},
	}

	r.enter(stageValidating, "validating request fields")
	if err := validateRequest(&req, mode); err != nil {
		e.log.Warn().Err(err).Msg("request validation failed")
		r.fail(ErrInputValidation, err.Error())
		return e.assemble(resp, r, mode)
	}

	r.enter(stageExtracting, "extracting clinical facts")
	facts, err := e.extractor.Extract(req.ClinicalNote, &req.Structured)
	resp.Facts = facts
	if err != nil {
		e.log.Warn().Err(err).Msg("fact extraction found no evidence")
		r.fail(ErrInsufficientEvidence, err.Error())
		return e.assemble(resp, r, mode)
	}
	r.trace = append(r.trace, AuditStep{Step: stageExtracting,
		Detail: fmt.Sprintf("extracted %d facts", len(facts.All()))})

	r.enter(stageMapping, "mapping facts to candidate codes")
	suggestions, gaps := e.mapper.Map(facts, req.Encounter)
	r.gaps = gaps
	for _, gap := range gaps {
		e.log.Debug().Str("fact", gap).Msg("no catalog match for fact")
		r.trace = append(r.trace, AuditStep{Step: stageMapping, Detail: "coverage gap: " + gap})
	}
	if len(suggestions) == 0 {
		r.fail(ErrInsufficientEvidence, "no billable codes could be derived from the extracted facts")
		return e.assemble(resp, r, mode)
	}
	resp.Suggestions = suggestions
	r.trace = append(r.trace, AuditStep{Step: stageMapping,
		Detail: fmt.Sprintf("produced %d suggestions", len(suggestions))})

	r.enter(stageChecking, "running compliance edit families")
	edits, err := e.checker.Check(suggestions, req.Encounter, facts)
	if edits != nil {
		resp.Edits = edits
	}
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			e.log.Warn().Str("rule_a", conflict.RuleA).Str("rule_b", conflict.RuleB).
				Msg("payer rule conflict")
			r.fail(ErrPolicyConflict, conflict.Error())
		} else {
			r.fail(ErrPolicyConflict, err.Error())
		}
		return e.assemble(resp, r, mode)
	}
	r.trace = append(r.trace, AuditStep{Step: stageChecking,
		Detail: fmt.Sprintf("ncci=%d mue=%d lcd=%d payer=%d edits",
			len(edits.NCCIPTP), len(edits.MUE), len(edits.LCDNCD), len(edits.PayerRules))})

	r.enter(stageScoring, "computing claim readiness")
	resp.Readiness = e.scorer.Score(suggestions, edits)
	r.trace = append(r.trace, AuditStep{Step: stageScoring,
		Detail: fmt.Sprintf("score %.2f", resp.Readiness.Score)})

	r.enter(stageDone, "pipeline complete")
	e.log.Debug().
		Int("suggestions", len(suggestions)).
		Float64("score", resp.Readiness.Score).
		Bool("submit_ready", resp.Readiness.SubmitReady).
		Msg("coding run complete")
	return e.assemble(resp, r, mode)
}

// assemble finalizes the response: error list, submit-ready gate, and the
// explain-mode projection. The mode only adds explanatory content; it
// never changes facts, suggestions, edits, or score.
func (e *Engine) assemble(resp *Response, r *run, mode string) *Response {
	resp.Errors = append(resp.Errors, r.errs...)
	if len(resp.Errors) > 0 {
		resp.Readiness.SubmitReady = false
	}
	if resp.Readiness.Issues == nil {
		resp.Readiness.Issues = []string{}
	}
	if resp.Readiness.Actions == nil {
		resp.Readiness.Actions = []string{}
	}
	if mode == ModeExplain {
		resp.Explanation = e.explain(resp, r)
	}
	return resp
}

// explain builds the human-readable narrative from the already-computed
// result. It reads the response and never writes to it.
func (e *Engine) explain(resp *Response, r *run) *Explanation {
	notes := []string{}
	for _, s := range resp.Suggestions {
		note := fmt.Sprintf("%s %s (%s): %s [confidence %.2f]",
			s.System, s.Code, s.Description, s.Rationale, s.Confidence)
		if len(s.Modifiers) > 0 {
			note += " modifiers " + strings.Join(s.Modifiers, ",")
		}
		notes = append(notes, note)
	}
	for _, fam := range [][]ComplianceEdit{
		resp.Edits.NCCIPTP, resp.Edits.MUE, resp.Edits.LCDNCD, resp.Edits.PayerRules,
	} {
		for _, edit := range fam {
			if edit.Status == StatusPass {
				continue
			}
			notes = append(notes, fmt.Sprintf("%s %s: %s", edit.Family, edit.Status, edit.Detail))
		}
	}
	for _, gap := range r.gaps {
		notes = append(notes, "no catalog coverage for "+gap)
	}
	notes = append(notes, fmt.Sprintf("claim readiness %.2f, submit ready: %t",
		resp.Readiness.Score, resp.Readiness.SubmitReady))
	return &Explanation{Notes: notes, AuditTrace: r.trace}
}

var dateFormat = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func validateRequest(req *Request, mode string) error {
	if mode != ModeAnalyze && mode != ModeExplain {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeAnalyze, ModeExplain, mode)
	}
	if req.Patient.Age < 0 || req.Patient.Age > 130 {
		return fmt.Errorf("patient age %d out of range", req.Patient.Age)
	}
	switch req.Patient.Sex {
	case "F", "M", "U", "":
	default:
		return fmt.Errorf("patient sex must be F, M, or U, got %q", req.Patient.Sex)
	}
	if req.Encounter.Date != "" {
		if !dateFormat.MatchString(req.Encounter.Date) {
			return fmt.Errorf("encounter date %q is not in YYYY-MM-DD format", req.Encounter.Date)
		}
		if _, err := time.Parse("2006-01-02", req.Encounter.Date); err != nil {
			return fmt.Errorf("encounter date %q is not a valid date", req.Encounter.Date)
		}
	}
	if req.Structured.Empty() && len(strings.TrimSpace(req.ClinicalNote)) > 0 &&
		len(strings.TrimSpace(req.ClinicalNote)) < 10 {
		return fmt.Errorf("clinical note too short to code from")
	}
	return nil
}
