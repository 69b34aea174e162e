// Package classify maps free-text incident content to a severity tier
// and an event category using ordered keyword rules. The tables below
// are the precedence order: first match wins, so reordering a rule
// changes behavior.
package classify

import (
	"strings"

	"github.com/statuswatch/statuswatch/model"
)

type categoryRule struct {
	keywords []string
	category model.Category
}

type severityRule struct {
	keywords []string
	severity model.Severity
}

var categoryRules = []categoryRule{
	{[]string{"resolved", "fixed", "completed", "closed"}, model.CategoryResolved},
	{[]string{"incident", "investigating", "identified", "monitoring"}, model.CategoryIncident},
	{[]string{"maintenance", "scheduled"}, model.CategoryMaintenance},
	{[]string{"degraded", "degradation", "performance"}, model.CategoryDegradation},
	{[]string{"outage", "down", "offline"}, model.CategoryOutage},
}

var severityRules = []severityRule{
	// A partial outage is major, not critical; this rule must stay
	// ahead of the critical tier or the bare "outage" keyword wins.
	{[]string{"partial outage", "partial failure"}, model.SeverityMajor},
	{[]string{"critical", "complete failure", "outage", "down", "offline"}, model.SeverityCritical},
	{[]string{"major", "significant", "disruption", "degraded", "partial", "slow"}, model.SeverityMajor},
	{[]string{"minor", "limited"}, model.SeverityMinor},
}

// Classify derives (severity, category) from an update's title and
// description. It is deterministic and stateless: the same input
// always yields the same result. Unmatched content falls back to
// (info, update).
func Classify(title, description string) (model.Severity, model.Category) {
	text := strings.ToLower(title + " " + description)
	return classifySeverity(text), classifyCategory(text)
}

func classifyCategory(text string) model.Category {
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.category
			}
		}
	}
	return model.CategoryUpdate
}

func classifySeverity(text string) model.Severity {
	for _, rule := range severityRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.severity
			}
		}
	}
	return model.SeverityInfo
}
