package scenario

import (
	"fmt"
	"strings"

	"github.com/lithammer/dedent"
)

// Per-step completion budgets, in tokens.
const (
	BudgetScenario    = 100
	BudgetComparison  = 150
	BudgetExplanation = 200
)

// SeedPrompt builds the first prompt of a run. An empty prior asks for a fresh
// scenario of the category; otherwise it asks for a variation of prior.
func SeedPrompt(category Category, prior string) string {
	prior = strings.TrimSpace(prior)
	if prior != "" {
		return sp(`
			Generate a similar scenario to this, but with slight variations: %s
		`, prior)
	}
	return sp(`
		Generate a %s scenario related to ADHD or ASD.
	`, category.Value)
}

// ComparisonPrompt asks how the scenario plays out with and without the condition.
func ComparisonPrompt(scenario string) string {
	return sp(`
		Compare how a person with and without ADHD/ASD might handle this scenario: %s
	`, scenario)
}

// ExplanationPrompt asks why the hack helps, contrasted with the comparison text.
func ExplanationPrompt(hack, comparison string) string {
	return sp(`
		Explain why this hack is necessary for people with ADHD/ASD: %s. Compare it with the typical experience: %s
	`, hack, comparison)
}

func sp(txt string, args ...any) string {
	return strings.TrimSpace(fmt.Sprintf(dedent.Dedent(strings.Trim(txt, "\n")), args...))
}
