package services

import "unigame/internal/models"

// Badge codes known to the default rule table
const (
	BadgeFirstWin = "FIRST_WIN"
	BadgeScore100 = "SCORE_100"
	BadgeStreak7  = "STREAK_7"
)

// BadgeRule unlocks the badge with Code when Predicate holds
type BadgeRule struct {
	Code      string
	Predicate func(stats models.UserStats) bool
}

// DefaultRuleTable returns the built-in badge rules in evaluation order
func DefaultRuleTable() []BadgeRule {
	return []BadgeRule{
		{Code: BadgeFirstWin, Predicate: func(s models.UserStats) bool { return s.Points >= 5 }},
		{Code: BadgeScore100, Predicate: func(s models.UserStats) bool { return s.Points >= 100 }},
		{Code: BadgeStreak7, Predicate: func(s models.UserStats) bool { return s.Streak >= 7 }},
	}
}

// BadgeEvaluator decides which badges a stats snapshot newly qualifies for
type BadgeEvaluator struct {
	rules []BadgeRule
}

// NewBadgeEvaluator creates an evaluator over rules. A nil table means the default one.
func NewBadgeEvaluator(rules []BadgeRule) *BadgeEvaluator {
	if rules == nil {
		rules = DefaultRuleTable()
	}
	return &BadgeEvaluator{rules: rules}
}

// Evaluate returns, in rule order, each badge whose predicate holds for stats,
// that is not in awarded and that has a reference row in badgesByCode.
// It has no side effects.
func (e *BadgeEvaluator) Evaluate(stats models.UserStats, awarded map[string]struct{}, badgesByCode map[string]*models.Badge) []*models.Badge {
	var unlocked []*models.Badge
	seen := make(map[string]struct{}, len(e.rules))

	for _, rule := range e.rules {
		if _, done := awarded[rule.Code]; done {
			continue
		}
		if _, dup := seen[rule.Code]; dup {
			continue
		}

		badge, ok := badgesByCode[rule.Code]
		if !ok || !rule.Predicate(stats) {
			continue
		}

		seen[rule.Code] = struct{}{}
		unlocked = append(unlocked, badge)
	}

	return unlocked
}
