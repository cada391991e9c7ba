package dialog

import (
	"fmt"

	"github.com/m3rciful/hackbot/core/scenario"
)

// User-facing copy.
const (
	CategoryMenuTitle = "Choose a situation"
	CategoryMenuText  = "Pick a daily-life or work scenario"
	NextMenuTitle     = "Next action"
	NextMenuText      = "What would you like to do next?"
	LabelRestart      = "Back to start"
	LabelExplore      = "Explore further"

	ApologyText         = "Sorry, I couldn't come up with a scenario right now. Please try again."
	InvalidCategoryText = "That situation is not available. Please pick one of the options."

	PrefixScenario    = "Scenario: "
	PrefixInfo        = "ADHD/ASD info: "
	PrefixComparison  = "Typical approach: "
	PrefixHack        = "ADHD/ASD hack: "
	PrefixExplanation = "Explanation: "
)

var categoryLabels = map[scenario.Category]string{
	scenario.CategoryDaily: "Daily life",
	scenario.CategoryWork:  "Work",
}

// InstructionText tells the user how to begin.
func InstructionText(keyword string) string {
	return fmt.Sprintf("Type %q to begin a scenario.", keyword)
}

// CategoryMenu offers one StartCategory action per category.
func CategoryMenu() Menu {
	members := scenario.Categories.Members()
	actions := make([]Action, 0, len(members))
	for _, c := range members {
		label, ok := categoryLabels[c]
		if !ok {
			label = c.Value
		}
		actions = append(actions, Action{Label: label, Payload: StartCategory{Category: c}})
	}
	return Menu{Title: CategoryMenuTitle, Text: CategoryMenuText, Actions: actions}
}

// NextMenu follows a presented scenario.
func NextMenu(category scenario.Category, shown string) Menu {
	return Menu{
		Title: NextMenuTitle,
		Text:  NextMenuText,
		Actions: []Action{
			{Label: LabelRestart, Payload: Restart{}},
			{Label: LabelExplore, Payload: ExploreMore{Category: category, PriorScenario: shown}},
		},
	}
}

// BundleMessages renders the five content messages in fixed order.
func BundleMessages(b scenario.Bundle) []Message {
	return []Message{
		{Text: PrefixScenario + b.Scenario},
		{Text: PrefixInfo + b.DomainInfo},
		{Text: PrefixComparison + b.Comparison},
		{Text: PrefixHack + b.Hack},
		{Text: PrefixExplanation + b.Explanation},
	}
}

func menuMessage(m Menu) Message {
	return Message{Menu: &m}
}
