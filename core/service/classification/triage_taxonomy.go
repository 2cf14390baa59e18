// Package classification turns ticket descriptions into routing decisions.
package classification

import (
	"strings"

	"ticket_triage/core/domain"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// taxonomyRule maps a keyword found in model output to a category.
type taxonomyRule struct {
	keyword  string
	category domain.TicketCategory
}

// taxonomy is checked in order; the first keyword found wins.
var taxonomy = []taxonomyRule{
	{keyword: "infra", category: domain.CategoryInfra},
	{keyword: "application team", category: domain.CategoryApplicationTeam},
	{keyword: "access management", category: domain.CategoryAccessManagement},
}

// Normalize maps raw model output to a category by case-insensitive substring
// match in taxonomy order. Output matching no keyword is CategoryUnknown.
func Normalize(raw string) domain.TicketCategory {
	// cases.Caser is stateful, so one per call.
	text := cases.Lower(language.Und).String(strings.TrimSpace(raw))
	for _, rule := range taxonomy {
		if strings.Contains(text, rule.keyword) {
			return rule.category
		}
	}
	return domain.CategoryUnknown
}
