package normalize

import (
	"strings"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/domain"
)

// conditionTable maps lowercased source condition strings to the canonical
// enum. Covers both human-facing labels and schema.org condition names.
var conditionTable = map[string]domain.Condition{
	"new":                      domain.ConditionNew,
	"brand new":                domain.ConditionNew,
	"new with box":             domain.ConditionNew,
	"new without box":          domain.ConditionNew,
	"new other":                domain.ConditionNew,
	"newcondition":             domain.ConditionNew,
	"refurbished":              domain.ConditionRefurbished,
	"certified refurbished":    domain.ConditionRefurbished,
	"seller refurbished":       domain.ConditionRefurbished,
	"manufacturer refurbished": domain.ConditionRefurbished,
	"renewed":                  domain.ConditionRefurbished,
	"refurbishedcondition":     domain.ConditionRefurbished,
	"used":                     domain.ConditionUsed,
	"pre-owned":                domain.ConditionUsed,
	"preowned":                 domain.ConditionUsed,
	"open box":                 domain.ConditionUsed,
	"very good":                domain.ConditionUsed,
	"good":                     domain.ConditionUsed,
	"acceptable":               domain.ConditionUsed,
	"for parts or not working": domain.ConditionUsed,
	"usedcondition":            domain.ConditionUsed,
	"damagedcondition":         domain.ConditionUsed,
}

// MapCondition resolves a raw source condition string to the canonical enum.
// Unmapped values default to used: mislabelling a new item as used is the
// safer failure than the reverse.
func MapCondition(raw string) domain.Condition {
	key := strings.ToLower(strings.TrimSpace(raw))
	if cond, ok := conditionTable[key]; ok {
		return cond
	}

	switch {
	case strings.Contains(key, "refurb") || strings.Contains(key, "renewed"):
		return domain.ConditionRefurbished
	case strings.HasPrefix(key, "new"):
		return domain.ConditionNew
	default:
		return domain.ConditionUsed
	}
}
