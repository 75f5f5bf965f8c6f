package services

import (
	"os"
	"path/filepath"
	"testing"

	"unigame/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
badges:
  - code: FIRST_WIN
    name: First Win
    description: Earned your first points
  - code: SCORE_100
    name: Century
rewards:
  - title: Extra Quiz Attempt
    cost_points: 60
  - title: Profile Theme
    description: Unlock a custom profile theme
    cost_points: 100
users:
  - id: 42
    display_name: Demo Student
`

func TestParseCatalog(t *testing.T) {
	catalog, err := ParseCatalog([]byte(sampleCatalog))
	require.NoError(t, err)

	require.Len(t, catalog.Badges, 2)
	assert.Equal(t, "FIRST_WIN", catalog.Badges[0].Code)
	assert.Equal(t, "Earned your first points", catalog.Badges[0].Description)

	require.Len(t, catalog.Rewards, 2)
	assert.Equal(t, 100, catalog.Rewards[1].CostPoints)

	assert.Equal(t, map[int64]string{42: "Demo Student"}, catalog.UserNames())
}

func TestParseCatalog_Rejects(t *testing.T) {
	tests := map[string]string{
		"duplicate badge code": `
badges:
  - {code: A, name: One}
  - {code: A, name: Two}
`,
		"badge without name": `
badges:
  - {code: A}
`,
		"free reward": `
rewards:
  - {title: Gift, cost_points: 0}
`,
		"duplicate reward title": `
rewards:
  - {title: Gift, cost_points: 5}
  - {title: Gift, cost_points: 6}
`,
		"non-positive user id": `
users:
  - {id: 0, display_name: Nobody}
`,
		"malformed yaml": "badges: [",
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o600))

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, catalog.Badges, 2)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadCatalog_ShippedFile(t *testing.T) {
	catalog, err := LoadCatalog(filepath.Join("..", "..", "config", "catalog.yaml"))
	require.NoError(t, err)

	codes := make(map[string]bool)
	for _, b := range catalog.Badges {
		codes[b.Code] = true
	}
	for _, rule := range DefaultRuleTable() {
		assert.True(t, codes[rule.Code], "rule %s has no badge in the catalog", rule.Code)
	}
}

func TestSortRewards(t *testing.T) {
	rewards := []*models.Reward{
		{ID: 4, CostPoints: 100},
		{ID: 1, CostPoints: 250},
		{ID: 3, CostPoints: 60},
		{ID: 2, CostPoints: 100},
	}

	SortRewards(rewards)

	ids := make([]int64, 0, len(rewards))
	for _, r := range rewards {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int64{3, 2, 4, 1}, ids)
}
