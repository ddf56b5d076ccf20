package validate

// riskFactor is one entry of the declarative risk model: a named
// predicate over the parsed command with the weight it contributes when
// present. Expressing the model as a table keeps it independently
// testable and auditable.
type riskFactor struct {
	name      string
	weight    int
	predicate func(parsedCommand, float64) bool
}

// defaultRiskModel lists the factors the scoring fold consumes. The
// weights and factors follow the security review of common scan
// patterns: stealth, evasion, and scripted execution dominate.
var defaultRiskModel = []riskFactor{
	{
		name:   "stealth_scan",
		weight: 2,
		predicate: func(p parsedCommand, _ float64) bool {
			return p.hasFlag("-sS") || p.hasFlag("-sF") || p.hasFlag("-sX") || p.hasFlag("-sN")
		},
	},
	{
		name:   "fragmentation",
		weight: 2,
		predicate: func(p parsedCommand, _ float64) bool {
			return p.hasFlag("-f") || p.hasFlag("--mtu")
		},
	},
	{
		name:   "decoys",
		weight: 3,
		predicate: func(p parsedCommand, _ float64) bool {
			return p.hasFlag("-D")
		},
	},
	{
		name:   "aggressive_detection",
		weight: 2,
		predicate: func(p parsedCommand, _ float64) bool {
			return p.hasFlag("-A") || p.hasFlag("-O") || p.hasFlag("--osscan-guess")
		},
	},
	{
		name:   "scripted_execution",
		weight: 2,
		predicate: func(p parsedCommand, _ float64) bool {
			return p.hasFlag("--script") || p.hasFlag("-sC")
		},
	},
	{
		name:   "aggressive_timing",
		weight: 1,
		predicate: func(p parsedCommand, _ float64) bool {
			return p.hasFlag("-T4") || p.hasFlag("-T5")
		},
	},
	{
		name:   "full_port_sweep",
		weight: 1,
		predicate: func(p parsedCommand, _ float64) bool {
			return p.hasFlag("-p-")
		},
	},
	{
		name:   "low_confidence",
		weight: 1,
		predicate: func(_ parsedCommand, confidence float64) bool {
			return confidence < 0.5
		},
	},
}

// scoreRisk folds the risk model over the parsed command, returning the
// total score and the names of the factors that fired.
func scoreRisk(model []riskFactor, parsed parsedCommand, confidence float64) (int, []string) {
	score := 0
	var fired []string
	for _, factor := range model {
		if factor.predicate(parsed, confidence) {
			score += factor.weight
			fired = append(fired, factor.name)
		}
	}
	return score, fired
}
