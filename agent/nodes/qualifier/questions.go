package qualifiernode

import (
	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
)

const FallbackMessage = "Hello! Thanks for reaching out. How can I help you with your property search today?"

var stageQuestions = map[contractx.Stage]string{
	contractx.StageGreeting:           "Hello! Welcome, I'm here to help you find the right property. May I know your name?",
	contractx.StageNameCollection:     "May I know your name, please?",
	contractx.StageQualification:      "What type of property are you looking for: a villa, an apartment or a plot?",
	contractx.StageBudgetCollection:   "What budget do you have in mind for this property?",
	contractx.StageLocationCollection: "Which city or area would you prefer?",
	contractx.StagePropertyMatching:   "Thanks! Let me look for properties that match your requirements.",
	contractx.StageScheduling:         "Would you like to schedule a site visit? Please share a convenient date and time.",
	contractx.StageFollowUp:           "Is there anything else I can help you with in your property search?",
}

var stageGoals = map[contractx.Stage]string{
	contractx.StageGreeting:           "greet the customer and ask for their name",
	contractx.StageNameCollection:     "ask for the customer's name",
	contractx.StageQualification:      "ask what type of property they want (villa, apartment or plot) and how many bedrooms",
	contractx.StageBudgetCollection:   "ask for their budget",
	contractx.StageLocationCollection: "ask which city or locality they prefer",
	contractx.StagePropertyMatching:   "confirm the requirements and say you are finding matching properties",
	contractx.StageScheduling:         "offer to schedule a site visit",
	contractx.StageFollowUp:           "check whether they need anything else and offer a follow-up",
}

// StageQuestion is the canned prompt used when no completion is available.
func StageQuestion(s contractx.Stage) string {
	if q, ok := stageQuestions[s]; ok {
		return q
	}
	return FallbackMessage
}

func stageGoal(s contractx.Stage) string {
	if g, ok := stageGoals[s]; ok {
		return g
	}
	return stageGoals[contractx.StageGreeting]
}
