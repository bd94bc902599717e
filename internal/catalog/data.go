package catalog

// Reference tables for the default catalog. Content is versioned as a whole
// (see DatasetVersion); rows are never mutated after Default() returns.

const DatasetVersion = "2025.3"

var defaultCPT = map[string]CPTEntry{
	// E/M
	"99203": {Description: "Office/outpatient E/M, new patient, low complexity", MUELimit: 1},
	"99204": {Description: "Office/outpatient E/M, new patient, moderate complexity", MUELimit: 1},
	"99205": {Description: "Office/outpatient E/M, new patient, high complexity", MUELimit: 1},
	"99213": {Description: "Office/outpatient E/M, established patient, low complexity", MUELimit: 1},
	"99214": {Description: "Office/outpatient E/M, established patient, moderate complexity", MUELimit: 1},
	"99215": {Description: "Office/outpatient E/M, established patient, high complexity", MUELimit: 1},
	"99282": {Description: "Emergency department visit, low complexity", MUELimit: 1},
	"99283": {Description: "Emergency department visit, moderate complexity", MUELimit: 1},
	"99284": {Description: "Emergency department visit, high complexity", MUELimit: 1},

	// Diagnostic tests
	"93000": {Description: "ECG, routine 12-lead with interpretation and report", MUELimit: 1},
	"71020": {Description: "Chest X-ray, two views", MUELimit: 4},
	"80053": {Description: "Comprehensive metabolic panel", MUELimit: 1},
	"85025": {Description: "Complete blood count with differential", MUELimit: 1},
	"81003": {Description: "Urinalysis, automated, without microscopy", MUELimit: 2},
	"36415": {Description: "Collection of venous blood by venipuncture", MUELimit: 3},

	// Procedures
	"12001": {Description: "Simple repair of superficial wound, 2.5 cm or less", MUELimit: 35},
	"17110": {Description: "Destruction of benign lesions, up to 14", MUELimit: 14},
	"90471": {Description: "Immunization administration, one vaccine", MUELimit: 6},
	"90715": {Description: "Tdap vaccine, 7 years or older", MUELimit: 1},
	"96372": {Description: "Therapeutic injection, subcutaneous or intramuscular", MUELimit: 4},
}

var defaultHCPCS = map[string]CPTEntry{
	"J3420": {Description: "Injection, vitamin B-12 cyanocobalamin, up to 1000 mcg", MUELimit: 1},
	"G0008": {Description: "Administration of influenza virus vaccine", MUELimit: 1},
}

var defaultICD10 = map[string]string{
	"R00.2":    "Palpitations",
	"R05":      "Cough",
	"R06.02":   "Shortness of breath",
	"R07.89":   "Other chest pain",
	"R10.9":    "Unspecified abdominal pain",
	"R11.10":   "Vomiting, unspecified",
	"R50.9":    "Fever, unspecified",
	"R51.9":    "Headache, unspecified",
	"Z23":      "Encounter for immunization",
	"Z87.891":  "Personal history of nicotine dependence",
	"I10":      "Essential (primary) hypertension",
	"E11.9":    "Type 2 diabetes mellitus without complications",
	"J00":      "Acute nasopharyngitis (common cold)",
	"J02.9":    "Acute pharyngitis, unspecified",
	"J44.1":    "COPD with acute exacerbation",
	"K59.00":   "Constipation, unspecified",
	"L03.90":   "Cellulitis, unspecified",
	"M25.50":   "Pain in unspecified joint",
	"N39.0":    "Urinary tract infection, site not specified",
	"S61.401A": "Unspecified open wound of right hand, initial encounter",
	"E53.8":    "Deficiency of other specified B group vitamins",
}

// defaultNCCI keys are ordered (column1, column2) pairs; lookups also try the
// reversed key so callers never need to know which column a code sits in.
var defaultNCCI = map[pairKey]NCCIRule{
	{"99213", "36415"}: {Bundled: true, ModifierAllowed: true, Modifiers: []string{"25"}},
	{"99213", "93000"}: {Bundled: false, ModifierAllowed: true, Modifiers: []string{"25"}},
	{"99214", "12001"}: {Bundled: true, ModifierAllowed: true, Modifiers: []string{"25"}},
	{"12001", "17110"}: {Bundled: true, ModifierAllowed: true, Modifiers: []string{"59", "XS"}},
	{"85025", "80053"}: {Bundled: true, ModifierAllowed: false},
	{"93000", "71020"}: {Bundled: false, ModifierAllowed: false},
}

// defaultLexicon maps normalized clinical phrases to candidate codes.
// A phrase may map into more than one code system.
var defaultLexicon = map[string][]string{
	// Symptoms / problems → ICD-10
	"palpitation":             {"R00.2"},
	"palpitations":            {"R00.2"},
	"chest pain":              {"R07.89"},
	"shortness of breath":     {"R06.02"},
	"dyspnea":                 {"R06.02"},
	"cough":                   {"R05"},
	"fever":                   {"R50.9"},
	"headache":                {"R51.9"},
	"nausea":                  {"R11.10"},
	"vomiting":                {"R11.10"},
	"abdominal pain":          {"R10.9"},
	"joint pain":              {"M25.50"},
	"constipation":            {"K59.00"},
	"hypertension":            {"I10"},
	"diabetes":                {"E11.9"},
	"sore throat":             {"J02.9"},
	"pharyngitis":             {"J02.9"},
	"cellulitis":              {"L03.90"},
	"wound":                   {"S61.401A"},
	"laceration":              {"S61.401A", "12001"},
	"uti":                     {"N39.0"},
	"urinary tract infection": {"N39.0"},

	// Procedures / tests → CPT, HCPCS
	"ecg":                     {"93000"},
	"ekg":                     {"93000"},
	"electrocardiogram":       {"93000"},
	"chest x-ray":             {"71020"},
	"chest xray":              {"71020"},
	"cxr":                     {"71020"},
	"blood draw":              {"36415"},
	"venipuncture":            {"36415"},
	"suture":                  {"12001"},
	"wound repair":            {"12001"},
	"lesion destruction":      {"17110"},
	"immunization":            {"90471", "Z23"},
	"vaccination":             {"90471", "Z23"},
	"vaccine":                 {"90471", "Z23"},
	"tdap":                    {"90715"},
	"flu shot":                {"G0008"},
	"influenza vaccine":       {"G0008"},
	"b12 injection":           {"J3420", "E53.8"},
	"injection":               {"96372"},
	"cbc":                     {"85025"},
	"complete blood count":    {"85025"},
	"metabolic panel":         {"80053"},
	"comprehensive metabolic": {"80053"},
	"urinalysis":              {"81003"},
}

var defaultModifiers = map[string]string{
	"25": "Significant, separately identifiable E/M service",
	"59": "Distinct procedural service",
	"XS": "Separate structure",
	"XU": "Unusual non-overlapping service",
	"50": "Bilateral procedure",
	"RT": "Right side",
	"LT": "Left side",
	"76": "Repeat procedure by same physician",
	"77": "Repeat procedure by another physician",
	"GT": "Synchronous telemedicine service",
	"95": "Synchronous telemedicine service",
}

var defaultPayers = []PayerProfile{
	{
		Name:                "Medicare",
		BilateralPreference: "50",
		TelehealthModifiers: []string{"95", "GT"},
		FrequencyLimits:     map[string]FrequencyLimit{"93000": {PerYear: 12}},
	},
	{
		Name:                "PPO",
		BilateralPreference: "RT_LT",
		TelehealthModifiers: []string{"95"},
		FrequencyLimits:     map[string]FrequencyLimit{},
	},
	{
		Name:                "Medicaid",
		BilateralPreference: "RT_LT",
		TelehealthModifiers: []string{"GT"},
		FrequencyLimits:     map[string]FrequencyLimit{"17110": {PerVisit: 3}},
	},
}

// genericPayer backs every payer name the table does not know.
var genericPayer = PayerProfile{
	Name:                "Generic",
	BilateralPreference: "RT_LT",
	TelehealthModifiers: []string{"95"},
	FrequencyLimits:     map[string]FrequencyLimit{},
}

var defaultPolicies = []LCDPolicy{
	{
		PolicyID:     "L33832",
		Name:         "Electrocardiographic services",
		Codes:        []string{"93000"},
		CoveredICD10: []string{"R00.2", "I10", "R06.02", "R07.89"},
		PerYear:      12,
		RequiredDocs: []string{"indication", "interpretation"},
	},
	{
		PolicyID:     "L34542",
		Name:         "Chest radiography",
		Codes:        []string{"71020"},
		CoveredICD10: []string{"R06.02", "R05", "J44.1", "Z87.891"},
		PerEpisode:   1,
		RequiredDocs: []string{"indication", "findings"},
	},
}
