package repositories

import (
	"cmp"
	"context"
	"fmt"
	"sync"
	"time"

	"unigame/internal/models"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// memoryStore implements GamificationRepository on in-process maps.
// Transactions stage their writes and publish them in a single critical
// section on commit, so readers never see half of a unit of work.
type memoryStore struct {
	mu     sync.RWMutex
	logger *zap.Logger
	retry  RetryPolicy

	nextStatsID     int64
	nextUserBadgeID int64
	nextRedeemID    int64
	nextBadgeID     int64
	nextRewardID    int64

	statsByUser map[int64]*models.UserStats
	userBadges  map[int64][]models.UserBadge  // keyed by stats id
	userRewards map[int64][]models.UserReward // keyed by stats id
	badges      map[int64]*models.Badge
	badgeOrder  []int64
	rewards     map[int64]*models.Reward
}

// NewMemoryStore creates an in-memory gamification repository
func NewMemoryStore(logger *zap.Logger, retry RetryPolicy) GamificationRepository {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &memoryStore{
		logger:      logger,
		retry:       retry,
		statsByUser: make(map[int64]*models.UserStats),
		userBadges:  make(map[int64][]models.UserBadge),
		userRewards: make(map[int64][]models.UserReward),
		badges:      make(map[int64]*models.Badge),
		rewards:     make(map[int64]*models.Reward),
	}
}

// memoryTx stages the writes of one unit of work
type memoryTx struct {
	store       *memoryStore
	userID      int64
	stats       *models.UserStats
	created     bool
	baseVersion int64
	badges      []models.UserBadge
	redemptions []models.UserReward
}

// ===============================
// TRANSACTIONS
// ===============================

func (s *memoryStore) WithinUserTx(ctx context.Context, userID int64, fn func(tx StatsTx) error) error {
	return withConflictRetry(ctx, s.retry, s.logger, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}

		tx := &memoryTx{store: s, userID: userID}
		if err := fn(tx); err != nil {
			return err
		}

		return s.commit(tx)
	})
}

func (s *memoryStore) commit(tx *memoryTx) error {
	if tx.stats == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.statsByUser[tx.userID]
	switch {
	case tx.created && exists:
		return fmt.Errorf("stats for user %d created concurrently: %w", tx.userID, ErrConflict)
	case !tx.created && (!exists || current.Version != tx.baseVersion):
		return fmt.Errorf("stats for user %d changed during transaction: %w", tx.userID, ErrConflict)
	}

	// Storage-level uniqueness of (stats, badge), checked before anything is published.
	seen := make(map[int64]struct{}, len(s.userBadges[tx.stats.ID])+len(tx.badges))
	for _, ub := range s.userBadges[tx.stats.ID] {
		seen[ub.BadgeID] = struct{}{}
	}
	for _, ub := range tx.badges {
		if _, dup := seen[ub.BadgeID]; dup {
			return fmt.Errorf("badge %d for stats %d: %w", ub.BadgeID, tx.stats.ID, ErrDuplicateBadge)
		}
		seen[ub.BadgeID] = struct{}{}
	}

	committed := *tx.stats
	committed.Version = tx.baseVersion + 1
	if tx.created {
		committed.Version = 0
	}
	s.statsByUser[tx.userID] = &committed

	for _, ub := range tx.badges {
		s.nextUserBadgeID++
		ub.ID = s.nextUserBadgeID
		s.userBadges[tx.stats.ID] = append(s.userBadges[tx.stats.ID], ub)
	}

	for _, ur := range tx.redemptions {
		s.nextRedeemID++
		ur.ID = s.nextRedeemID
		s.userRewards[tx.stats.ID] = append(s.userRewards[tx.stats.ID], ur)
	}

	return nil
}

func (tx *memoryTx) GetOrCreateStats(ctx context.Context, userID int64, now time.Time) (*models.UserStats, error) {
	if userID != tx.userID {
		return nil, fmt.Errorf("transaction scoped to user %d cannot read user %d", tx.userID, userID)
	}

	if tx.stats != nil {
		cp := *tx.stats
		return &cp, nil
	}

	s := tx.store
	s.mu.Lock()
	existing, ok := s.statsByUser[userID]
	if ok {
		cp := *existing
		tx.stats = &cp
		tx.baseVersion = existing.Version
	} else {
		s.nextStatsID++
		tx.stats = &models.UserStats{
			ID:           s.nextStatsID,
			UserID:       userID,
			LastActivity: now,
		}
		tx.created = true
	}
	s.mu.Unlock()

	cp := *tx.stats
	return &cp, nil
}

func (tx *memoryTx) ApplyDelta(ctx context.Context, stats *models.UserStats, pointsDelta, streakDelta int, now time.Time) (*models.UserStats, error) {
	if tx.stats == nil || stats.ID != tx.stats.ID {
		return nil, fmt.Errorf("stats %d not loaded in this transaction", stats.ID)
	}

	points := tx.stats.Points + pointsDelta
	if points < 0 {
		return nil, ErrInsufficientBalance
	}

	streak := tx.stats.Streak + streakDelta
	if streak < 0 {
		return nil, ErrNegativeStreak
	}

	tx.stats.Points = points
	tx.stats.Streak = streak
	tx.stats.LastActivity = now

	cp := *tx.stats
	return &cp, nil
}

func (tx *memoryTx) MarkCheckIn(ctx context.Context, stats *models.UserStats, at time.Time) error {
	if tx.stats == nil || stats.ID != tx.stats.ID {
		return fmt.Errorf("stats %d not loaded in this transaction", stats.ID)
	}
	checkIn := at
	tx.stats.LastCheckIn = &checkIn
	return nil
}

func (tx *memoryTx) AwardedBadgeIDs(ctx context.Context, userStatsID int64) (map[int64]struct{}, error) {
	s := tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make(map[int64]struct{}, len(s.userBadges[userStatsID])+len(tx.badges))
	for _, ub := range s.userBadges[userStatsID] {
		ids[ub.BadgeID] = struct{}{}
	}
	for _, ub := range tx.badges {
		ids[ub.BadgeID] = struct{}{}
	}

	return ids, nil
}

func (tx *memoryTx) InsertUserBadge(ctx context.Context, award *models.UserBadge) error {
	for _, staged := range tx.badges {
		if staged.BadgeID == award.BadgeID && staged.UserStatsID == award.UserStatsID {
			return ErrDuplicateBadge
		}
	}

	tx.store.mu.RLock()
	_, known := tx.store.badges[award.BadgeID]
	tx.store.mu.RUnlock()
	if !known {
		return fmt.Errorf("badge %d: %w", award.BadgeID, ErrNotFound)
	}

	tx.badges = append(tx.badges, *award)
	return nil
}

func (tx *memoryTx) GetReward(ctx context.Context, rewardID int64) (*models.Reward, error) {
	return tx.store.GetReward(ctx, rewardID)
}

func (tx *memoryTx) InsertUserReward(ctx context.Context, redemption *models.UserReward) error {
	tx.redemptions = append(tx.redemptions, *redemption)
	return nil
}

// ===============================
// READS
// ===============================

func (s *memoryStore) GetSnapshot(ctx context.Context, userID int64) (*models.StatsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, ok := s.statsByUser[userID]
	if !ok {
		return nil, ErrNotFound
	}

	statsCopy := *stats
	snapshot := &models.StatsSnapshot{
		Stats:   &statsCopy,
		Badges:  make([]models.AwardedBadge, 0, len(s.userBadges[stats.ID])),
		Rewards: make([]models.RedeemedReward, 0, len(s.userRewards[stats.ID])),
	}

	for _, ub := range s.userBadges[stats.ID] {
		badge := *s.badges[ub.BadgeID]
		snapshot.Badges = append(snapshot.Badges, models.AwardedBadge{Badge: &badge, AwardedAt: ub.AwardedAt})
	}

	for _, ur := range s.userRewards[stats.ID] {
		reward := *s.rewards[ur.RewardID]
		snapshot.Rewards = append(snapshot.Rewards, models.RedeemedReward{Reward: &reward, RedeemedAt: ur.RedeemedAt})
	}

	return snapshot, nil
}

func (s *memoryStore) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardRow, error) {
	s.mu.RLock()
	rows := make([]models.LeaderboardRow, 0, len(s.statsByUser))
	for _, stats := range s.statsByUser {
		rows = append(rows, models.LeaderboardRow{UserID: stats.UserID, Points: stats.Points})
	}
	s.mu.RUnlock()

	slices.SortFunc(rows, func(a, b models.LeaderboardRow) int {
		if c := cmp.Compare(b.Points, a.Points); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})

	if limit >= 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	return rows, nil
}

func (s *memoryStore) ListBadges(ctx context.Context) ([]*models.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	badges := make([]*models.Badge, 0, len(s.badgeOrder))
	for _, id := range s.badgeOrder {
		badge := *s.badges[id]
		badges = append(badges, &badge)
	}
	return badges, nil
}

func (s *memoryStore) ListRewards(ctx context.Context) ([]*models.Reward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rewards := make([]*models.Reward, 0, len(s.rewards))
	for _, r := range s.rewards {
		reward := *r
		rewards = append(rewards, &reward)
	}

	slices.SortFunc(rewards, func(a, b *models.Reward) int { return cmp.Compare(a.ID, b.ID) })
	return rewards, nil
}

func (s *memoryStore) GetReward(ctx context.Context, rewardID int64) (*models.Reward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rewards[rewardID]
	if !ok {
		return nil, ErrNotFound
	}
	reward := *r
	return &reward, nil
}

// SeedCatalog upserts badges by code and rewards by title
func (s *memoryStore) SeedCatalog(ctx context.Context, badges []*models.Badge, rewards []*models.Reward) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range badges {
		if existing := s.badgeByCodeLocked(b.Code); existing != nil {
			id := existing.ID
			*existing = *b
			existing.ID = id
			continue
		}
		s.nextBadgeID++
		badge := *b
		badge.ID = s.nextBadgeID
		s.badges[badge.ID] = &badge
		s.badgeOrder = append(s.badgeOrder, badge.ID)
	}

	for _, r := range rewards {
		if existing := s.rewardByTitleLocked(r.Title); existing != nil {
			id := existing.ID
			*existing = *r
			existing.ID = id
			continue
		}
		s.nextRewardID++
		reward := *r
		reward.ID = s.nextRewardID
		s.rewards[reward.ID] = &reward
	}

	s.logger.Debug("Catalog seeded",
		zap.Int("badges", len(s.badges)),
		zap.Int("rewards", len(s.rewards)),
	)

	return nil
}

func (s *memoryStore) badgeByCodeLocked(code string) *models.Badge {
	for _, b := range s.badges {
		if b.Code == code {
			return b
		}
	}
	return nil
}

func (s *memoryStore) rewardByTitleLocked(title string) *models.Reward {
	for _, r := range s.rewards {
		if r.Title == title {
			return r
		}
	}
	return nil
}

func (s *memoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
