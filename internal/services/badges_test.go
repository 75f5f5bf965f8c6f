package services

import (
	"testing"

	"unigame/internal/models"

	"github.com/stretchr/testify/assert"
)

func badgeIndex() map[string]*models.Badge {
	return map[string]*models.Badge{
		BadgeFirstWin: {ID: 1, Code: BadgeFirstWin},
		BadgeScore100: {ID: 2, Code: BadgeScore100},
		BadgeStreak7:  {ID: 3, Code: BadgeStreak7},
	}
}

func codesOf(badges []*models.Badge) []string {
	codes := make([]string, 0, len(badges))
	for _, b := range badges {
		codes = append(codes, b.Code)
	}
	return codes
}

func TestEvaluate_Thresholds(t *testing.T) {
	e := NewBadgeEvaluator(nil)

	tests := []struct {
		name   string
		stats  models.UserStats
		expect []string
	}{
		{"nothing yet", models.UserStats{Points: 4}, []string{}},
		{"first win boundary", models.UserStats{Points: 5}, []string{BadgeFirstWin}},
		{"both point badges in rule order", models.UserStats{Points: 100}, []string{BadgeFirstWin, BadgeScore100}},
		{"streak only", models.UserStats{Streak: 7}, []string{BadgeStreak7}},
		{"everything", models.UserStats{Points: 500, Streak: 30}, []string{BadgeFirstWin, BadgeScore100, BadgeStreak7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Evaluate(tt.stats, nil, badgeIndex())
			assert.Equal(t, tt.expect, codesOf(got))
		})
	}
}

func TestEvaluate_SkipsAwardedBadges(t *testing.T) {
	e := NewBadgeEvaluator(nil)
	awarded := map[string]struct{}{BadgeFirstWin: {}}

	got := e.Evaluate(models.UserStats{Points: 150}, awarded, badgeIndex())
	assert.Equal(t, []string{BadgeScore100}, codesOf(got))

	awarded[BadgeScore100] = struct{}{}
	assert.Empty(t, e.Evaluate(models.UserStats{Points: 150}, awarded, badgeIndex()))
}

func TestEvaluate_SkipsRulesWithoutReferenceRow(t *testing.T) {
	e := NewBadgeEvaluator(nil)
	index := badgeIndex()
	delete(index, BadgeFirstWin)

	got := e.Evaluate(models.UserStats{Points: 120}, nil, index)
	assert.Equal(t, []string{BadgeScore100}, codesOf(got))
}

func TestEvaluate_DuplicateRulesYieldOneBadge(t *testing.T) {
	rules := append(DefaultRuleTable(), BadgeRule{
		Code:      BadgeFirstWin,
		Predicate: func(s models.UserStats) bool { return s.Points >= 1 },
	})
	e := NewBadgeEvaluator(rules)

	got := e.Evaluate(models.UserStats{Points: 10}, nil, badgeIndex())
	assert.Equal(t, []string{BadgeFirstWin}, codesOf(got))
}

func TestEvaluate_DoesNotMutateInputs(t *testing.T) {
	e := NewBadgeEvaluator(nil)
	awarded := map[string]struct{}{}
	index := badgeIndex()

	e.Evaluate(models.UserStats{Points: 200, Streak: 8}, awarded, index)

	assert.Empty(t, awarded)
	assert.Len(t, index, 3)
}
