package services

import (
	"cmp"
	"fmt"
	"os"

	"unigame/internal/models"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// CatalogFile is the on-disk shape of the badge and reward seed. Users are
// only read by the memory driver, which has no user table to consult.
type CatalogFile struct {
	Badges  []*models.Badge  `yaml:"badges"`
	Rewards []*models.Reward `yaml:"rewards"`
	Users   []SeedUser       `yaml:"users"`
}

// SeedUser is a directory entry for the memory driver
type SeedUser struct {
	ID          int64  `yaml:"id"`
	DisplayName string `yaml:"display_name"`
}

// UserNames returns the seeded users as an id to display name map
func (c *CatalogFile) UserNames() map[int64]string {
	names := make(map[int64]string, len(c.Users))
	for _, u := range c.Users {
		names[u.ID] = u.DisplayName
	}
	return names
}

// LoadCatalog reads and validates a YAML catalog file
func LoadCatalog(path string) (*CatalogFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates YAML catalog data
func ParseCatalog(data []byte) (*CatalogFile, error) {
	var catalog CatalogFile
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog yaml: %w", err)
	}

	if err := catalog.Validate(); err != nil {
		return nil, err
	}

	return &catalog, nil
}

// Validate checks uniqueness of badge codes and reward titles and that every
// reward has a positive cost.
func (c *CatalogFile) Validate() error {
	codes := make(map[string]struct{}, len(c.Badges))
	for i, b := range c.Badges {
		if b == nil || b.Code == "" {
			return fmt.Errorf("badge %d: code is required", i)
		}
		if b.Name == "" {
			return fmt.Errorf("badge %s: name is required", b.Code)
		}
		if _, dup := codes[b.Code]; dup {
			return fmt.Errorf("badge %s: duplicate code", b.Code)
		}
		codes[b.Code] = struct{}{}
	}

	titles := make(map[string]struct{}, len(c.Rewards))
	for i, r := range c.Rewards {
		if r == nil || r.Title == "" {
			return fmt.Errorf("reward %d: title is required", i)
		}
		if r.CostPoints <= 0 {
			return fmt.Errorf("reward %s: cost_points must be positive", r.Title)
		}
		if _, dup := titles[r.Title]; dup {
			return fmt.Errorf("reward %s: duplicate title", r.Title)
		}
		titles[r.Title] = struct{}{}
	}

	ids := make(map[int64]struct{}, len(c.Users))
	for _, u := range c.Users {
		if u.ID <= 0 {
			return fmt.Errorf("user %q: id must be positive", u.DisplayName)
		}
		if _, dup := ids[u.ID]; dup {
			return fmt.Errorf("user %d: duplicate id", u.ID)
		}
		ids[u.ID] = struct{}{}
	}

	return nil
}

// SortRewards orders rewards by cost, then by id
func SortRewards(rewards []*models.Reward) {
	slices.SortFunc(rewards, func(a, b *models.Reward) int {
		if c := cmp.Compare(a.CostPoints, b.CostPoints); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
