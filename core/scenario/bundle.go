package scenario

import "errors"

// Fallback texts substituted when an enrichment step fails.
const (
	FallbackInfo        = "Information unavailable."
	FallbackComparison  = "Comparison unavailable."
	FallbackHack        = "Hack unavailable."
	FallbackExplanation = "Explanation unavailable."
)

// ErrGenerationUnavailable reports that the seed step failed and no bundle exists.
var ErrGenerationUnavailable = errors.New("scenario: generation unavailable")

// Bundle is the five-part result of one pipeline run. Every field is non-empty.
type Bundle struct {
	Scenario    string
	DomainInfo  string
	Comparison  string
	Hack        string
	Explanation string
	// Fallbacks names the steps that were replaced by fallback text.
	Fallbacks []Step
}

// Step names a pipeline stage, used in logs and Bundle.Fallbacks.
type Step string

const (
	StepScenario    Step = "scenario"
	StepDomainInfo  Step = "domain_info"
	StepComparison  Step = "comparison"
	StepHack        Step = "hack"
	StepExplanation Step = "explanation"
)

// Degraded reports whether any enrichment step fell back.
func (b Bundle) Degraded() bool {
	return len(b.Fallbacks) > 0
}
