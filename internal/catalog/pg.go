package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LoadPG builds a catalog from the reference tables in Postgres. The load
// happens once at startup; the returned catalog is as immutable as the
// embedded default. Rows override the embedded tables wholesale per table:
// an empty table falls back to the embedded data rather than erasing it.
func LoadPG(ctx context.Context, pool *pgxpool.Pool) (*Catalog, error) {
	c := Default()

	version, err := loadVersion(ctx, pool)
	if err != nil {
		return nil, err
	}
	if version != "" {
		c.version = version
	}

	cpt, hcpcs, err := loadProcedureCodes(ctx, pool)
	if err != nil {
		return nil, err
	}
	if len(cpt) > 0 {
		c.cpt = cpt
	}
	if len(hcpcs) > 0 {
		c.hcpcs = hcpcs
	}

	icd, err := loadICD10(ctx, pool)
	if err != nil {
		return nil, err
	}
	if len(icd) > 0 {
		c.icd10 = icd
	}

	ncci, err := loadNCCI(ctx, pool)
	if err != nil {
		return nil, err
	}
	if len(ncci) > 0 {
		c.ncci = ncci
	}

	lex, err := loadLexicon(ctx, pool)
	if err != nil {
		return nil, err
	}
	if len(lex) > 0 {
		c.lexicon = lex
	}

	policies, err := loadLCDPolicies(ctx, pool)
	if err != nil {
		return nil, err
	}
	if len(policies) > 0 {
		c.policies = policies
	}

	payers, err := loadPayerProfiles(ctx, pool)
	if err != nil {
		return nil, err
	}
	if len(payers) > 0 {
		c.payers = payers
	}

	return c, nil
}

var referenceSchema = []string{
	`CREATE TABLE IF NOT EXISTS reference_dataset (
		version VARCHAR(32) PRIMARY KEY,
		loaded_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS reference_procedure_code (
		code VARCHAR(8) PRIMARY KEY,
		description TEXT NOT NULL,
		mue_limit INTEGER NOT NULL DEFAULT 1,
		code_system VARCHAR(8) NOT NULL DEFAULT 'CPT'
	)`,
	`CREATE TABLE IF NOT EXISTS reference_icd10 (
		code VARCHAR(10) PRIMARY KEY,
		display TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reference_ncci_pair (
		column1 VARCHAR(8) NOT NULL,
		column2 VARCHAR(8) NOT NULL,
		bundled BOOLEAN NOT NULL,
		modifier_allowed BOOLEAN NOT NULL,
		modifiers TEXT[],
		PRIMARY KEY (column1, column2)
	)`,
	`CREATE TABLE IF NOT EXISTS reference_lexicon (
		phrase TEXT PRIMARY KEY,
		codes TEXT[] NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reference_lcd_policy (
		policy_id VARCHAR(16) PRIMARY KEY,
		name TEXT NOT NULL,
		codes TEXT[] NOT NULL,
		covered_icd10 TEXT[] NOT NULL,
		per_year INTEGER NOT NULL DEFAULT 0,
		per_episode INTEGER NOT NULL DEFAULT 0,
		required_docs TEXT[]
	)`,
	`CREATE TABLE IF NOT EXISTS reference_payer_profile (
		name VARCHAR(64) PRIMARY KEY,
		bilateral_preference VARCHAR(8) NOT NULL,
		telehealth_modifiers TEXT[],
		frequency_limits JSONB
	)`,
}

// referenceTables lists every table SeedPG owns, in seed order.
var referenceTables = []string{
	"reference_dataset",
	"reference_procedure_code",
	"reference_icd10",
	"reference_ncci_pair",
	"reference_lexicon",
	"reference_lcd_policy",
	"reference_payer_profile",
}

// SeedPG creates the reference tables and loads the catalog's contents into
// them, replacing any previous rows. Run once when provisioning a database;
// LoadPG reads the result back at startup.
func (c *Catalog) SeedPG(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range referenceSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create reference table: %w", err)
		}
	}

	for _, table := range referenceTables {
		if _, err := pool.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if _, err := pool.Exec(ctx,
		`INSERT INTO reference_dataset (version) VALUES ($1)`, c.version); err != nil {
		return fmt.Errorf("seed dataset version: %w", err)
	}

	for _, code := range sortedKeys(c.cpt) {
		e := c.cpt[code]
		if _, err := pool.Exec(ctx,
			`INSERT INTO reference_procedure_code (code, description, mue_limit, code_system)
			 VALUES ($1, $2, $3, 'CPT')`, code, e.Description, e.MUELimit); err != nil {
			return fmt.Errorf("seed cpt %s: %w", code, err)
		}
	}
	for _, code := range sortedKeys(c.hcpcs) {
		e := c.hcpcs[code]
		if _, err := pool.Exec(ctx,
			`INSERT INTO reference_procedure_code (code, description, mue_limit, code_system)
			 VALUES ($1, $2, $3, 'HCPCS')`, code, e.Description, e.MUELimit); err != nil {
			return fmt.Errorf("seed hcpcs %s: %w", code, err)
		}
	}
	for _, code := range sortedKeys(c.icd10) {
		if _, err := pool.Exec(ctx,
			`INSERT INTO reference_icd10 (code, display) VALUES ($1, $2)`,
			code, c.icd10[code]); err != nil {
			return fmt.Errorf("seed icd10 %s: %w", code, err)
		}
	}
	for pair, rule := range c.ncci {
		if _, err := pool.Exec(ctx,
			`INSERT INTO reference_ncci_pair (column1, column2, bundled, modifier_allowed, modifiers)
			 VALUES ($1, $2, $3, $4, $5)`,
			pair[0], pair[1], rule.Bundled, rule.ModifierAllowed, rule.Modifiers); err != nil {
			return fmt.Errorf("seed ncci %s/%s: %w", pair[0], pair[1], err)
		}
	}
	for _, phrase := range sortedKeys(c.lexicon) {
		if _, err := pool.Exec(ctx,
			`INSERT INTO reference_lexicon (phrase, codes) VALUES ($1, $2)`,
			phrase, c.lexicon[phrase]); err != nil {
			return fmt.Errorf("seed lexicon %q: %w", phrase, err)
		}
	}
	for _, pol := range c.policies {
		if _, err := pool.Exec(ctx,
			`INSERT INTO reference_lcd_policy (policy_id, name, codes, covered_icd10, per_year, per_episode, required_docs)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			pol.PolicyID, pol.Name, pol.Codes, pol.CoveredICD10,
			pol.PerYear, pol.PerEpisode, pol.RequiredDocs); err != nil {
			return fmt.Errorf("seed lcd policy %s: %w", pol.PolicyID, err)
		}
	}
	for _, prof := range c.payers {
		if _, err := pool.Exec(ctx,
			`INSERT INTO reference_payer_profile (name, bilateral_preference, telehealth_modifiers, frequency_limits)
			 VALUES ($1, $2, $3, $4)`,
			prof.Name, prof.BilateralPreference, prof.TelehealthModifiers,
			prof.FrequencyLimits); err != nil {
			return fmt.Errorf("seed payer profile %s: %w", prof.Name, err)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func loadVersion(ctx context.Context, pool *pgxpool.Pool) (string, error) {
	var v string
	err := pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), '') FROM reference_dataset`).Scan(&v)
	if err != nil {
		return "", fmt.Errorf("catalog version: %w", err)
	}
	return v, nil
}

func loadProcedureCodes(ctx context.Context, pool *pgxpool.Pool) (map[string]CPTEntry, map[string]CPTEntry, error) {
	rows, err := pool.Query(ctx,
		`SELECT code, description, COALESCE(mue_limit, 1), code_system
		 FROM reference_procedure_code`)
	if err != nil {
		return nil, nil, fmt.Errorf("procedure codes: %w", err)
	}
	defer rows.Close()

	cpt := map[string]CPTEntry{}
	hcpcs := map[string]CPTEntry{}
	for rows.Next() {
		var code, desc, system string
		var mue int
		if err := rows.Scan(&code, &desc, &mue, &system); err != nil {
			return nil, nil, err
		}
		entry := CPTEntry{Description: desc, MUELimit: mue}
		if system == "HCPCS" {
			hcpcs[code] = entry
		} else {
			cpt[code] = entry
		}
	}
	return cpt, hcpcs, rows.Err()
}

func loadICD10(ctx context.Context, pool *pgxpool.Pool) (map[string]string, error) {
	rows, err := pool.Query(ctx,
		`SELECT code, display FROM reference_icd10`)
	if err != nil {
		return nil, fmt.Errorf("icd10 codes: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var code, display string
		if err := rows.Scan(&code, &display); err != nil {
			return nil, err
		}
		out[code] = display
	}
	return out, rows.Err()
}

func loadNCCI(ctx context.Context, pool *pgxpool.Pool) (map[pairKey]NCCIRule, error) {
	rows, err := pool.Query(ctx,
		`SELECT column1, column2, bundled, modifier_allowed, COALESCE(modifiers, '{}')
		 FROM reference_ncci_pair`)
	if err != nil {
		return nil, fmt.Errorf("ncci pairs: %w", err)
	}
	defer rows.Close()

	out := map[pairKey]NCCIRule{}
	for rows.Next() {
		var a, b string
		var rule NCCIRule
		if err := rows.Scan(&a, &b, &rule.Bundled, &rule.ModifierAllowed, &rule.Modifiers); err != nil {
			return nil, err
		}
		out[pairKey{a, b}] = rule
	}
	return out, rows.Err()
}

func loadLCDPolicies(ctx context.Context, pool *pgxpool.Pool) ([]LCDPolicy, error) {
	rows, err := pool.Query(ctx,
		`SELECT policy_id, name, codes, covered_icd10, per_year, per_episode, COALESCE(required_docs, '{}')
		 FROM reference_lcd_policy ORDER BY policy_id`)
	if err != nil {
		return nil, fmt.Errorf("lcd policies: %w", err)
	}
	defer rows.Close()

	var out []LCDPolicy
	for rows.Next() {
		var pol LCDPolicy
		if err := rows.Scan(&pol.PolicyID, &pol.Name, &pol.Codes, &pol.CoveredICD10,
			&pol.PerYear, &pol.PerEpisode, &pol.RequiredDocs); err != nil {
			return nil, err
		}
		out = append(out, pol)
	}
	return out, rows.Err()
}

func loadPayerProfiles(ctx context.Context, pool *pgxpool.Pool) ([]PayerProfile, error) {
	rows, err := pool.Query(ctx,
		`SELECT name, bilateral_preference, COALESCE(telehealth_modifiers, '{}'), COALESCE(frequency_limits, '{}'::jsonb)
		 FROM reference_payer_profile ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("payer profiles: %w", err)
	}
	defer rows.Close()

	var out []PayerProfile
	for rows.Next() {
		var prof PayerProfile
		if err := rows.Scan(&prof.Name, &prof.BilateralPreference,
			&prof.TelehealthModifiers, &prof.FrequencyLimits); err != nil {
			return nil, err
		}
		out = append(out, prof)
	}
	return out, rows.Err()
}

func loadLexicon(ctx context.Context, pool *pgxpool.Pool) (map[string][]string, error) {
	rows, err := pool.Query(ctx,
		`SELECT phrase, codes FROM reference_lexicon`)
	if err != nil {
		return nil, fmt.Errorf("lexicon: %w", err)
	}
	defer rows.Close()

	out := map[string][]string{}
	for rows.Next() {
		var phrase string
		var codes []string
		if err := rows.Scan(&phrase, &codes); err != nil {
			return nil, err
		}
		out[phrase] = codes
	}
	return out, rows.Err()
}
