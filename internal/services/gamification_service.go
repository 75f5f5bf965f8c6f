package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"unigame/internal/config"
	"unigame/internal/events"
	"unigame/internal/models"
	"unigame/internal/repositories"
	"unigame/internal/validation"

	"go.uber.org/zap"
)

const (
	defaultLeaderboardLimit = 50
	maxLeaderboardLimit     = 100
)

// GamificationDeps collects the collaborators of the gamification service.
// Only Repository and Directory are required.
type GamificationDeps struct {
	Repository repositories.GamificationRepository
	Directory  repositories.UserDirectory
	EventBus   events.EventBus
	Logger     *zap.Logger
	Config     *config.GamificationConfig
	Clock      Clock
	Random     RandomSource
	Rules      []BadgeRule
}

// gamificationService implements GamificationService
type gamificationService struct {
	repo       repositories.GamificationRepository
	directory  repositories.UserDirectory
	events     events.EventBus
	logger     *zap.Logger
	evaluator  *BadgeEvaluator
	randomizer *Randomizer
	locks      *userLocks
	clock      Clock

	defaultLimit int
	maxLimit     int
}

// NewGamificationService creates a new gamification service
func NewGamificationService(deps GamificationDeps) (GamificationService, error) {
	if deps.Repository == nil {
		return nil, fmt.Errorf("gamification repository is required")
	}
	if deps.Directory == nil {
		return nil, fmt.Errorf("user directory is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	clock := deps.Clock
	if clock == nil {
		clock = realClock{}
	}

	svc := &gamificationService{
		repo:         deps.Repository,
		directory:    deps.Directory,
		events:       deps.EventBus,
		logger:       logger,
		evaluator:    NewBadgeEvaluator(deps.Rules),
		randomizer:   NewRandomizer(deps.Random),
		clock:        clock,
		defaultLimit: defaultLeaderboardLimit,
		maxLimit:     maxLeaderboardLimit,
	}

	shards := defaultLockShards
	if cfg := deps.Config; cfg != nil {
		if cfg.LockShards > 0 {
			shards = cfg.LockShards
		}
		if cfg.DefaultLeaderboardLimit > 0 {
			svc.defaultLimit = cfg.DefaultLeaderboardLimit
		}
		if cfg.MaxLeaderboardLimit > 0 {
			svc.maxLimit = cfg.MaxLeaderboardLimit
		}
	}
	svc.locks = newUserLocks(shards)

	return svc, nil
}

// ===============================
// STATS
// ===============================

// GetUserStats returns the user's stats, creating a zeroed record on first access
func (s *gamificationService) GetUserStats(ctx context.Context, userID int64) (*models.UserStatsView, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}

	snapshot, err := s.repo.GetSnapshot(ctx, userID)
	if err == nil {
		return snapshot.ToView(), nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, s.translateError("get_user_stats", userID, err)
	}

	err = s.locks.withLock(userID, func() error {
		err := s.repo.WithinUserTx(ctx, userID, func(tx repositories.StatsTx) error {
			_, err := tx.GetOrCreateStats(ctx, userID, s.clock.Now())
			return err
		})
		if err != nil {
			return err
		}

		snapshot, err = s.repo.GetSnapshot(ctx, userID)
		return err
	})
	if err != nil {
		return nil, s.translateError("get_user_stats", userID, err)
	}

	return snapshot.ToView(), nil
}

// ===============================
// MUTATIONS
// ===============================

// AddPoints credits a non-negative number of points and evaluates badges
func (s *gamificationService) AddPoints(ctx context.Context, req *AddPointsRequest) (*models.UserStatsView, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	if req.Points == 0 {
		return s.GetUserStats(ctx, req.UserID)
	}

	result, err := s.mutate(ctx, mutation{
		op:       "add_points",
		userID:   req.UserID,
		evaluate: true,
		apply: func(ctx context.Context, tx repositories.StatsTx, stats *models.UserStats, now time.Time) (*models.UserStats, error) {
			return credit(ctx, tx, stats, req.Points, now)
		},
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, result, events.NewPointsAddedEvent(req.UserID, req.Points, result.after.Points, result.at))

	return result.snapshot.ToView(), nil
}

// PlayMiniGame draws an award for the game type and credits it
func (s *gamificationService) PlayMiniGame(ctx context.Context, req *PlayMiniGameRequest) (*models.GamePlayResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	gameType := strings.ToLower(req.GameType)
	if gameType == "" {
		gameType = GameSpin
	}

	// Drawn once so a retried transaction credits the same award.
	award, message := s.randomizer.Draw(gameType)

	result, err := s.mutate(ctx, mutation{
		op:       "play_minigame",
		userID:   req.UserID,
		evaluate: true,
		apply: func(ctx context.Context, tx repositories.StatsTx, stats *models.UserStats, now time.Time) (*models.UserStats, error) {
			return credit(ctx, tx, stats, award, now)
		},
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, result, events.NewMiniGamePlayedEvent(req.UserID, gameType, award, result.after.Points, result.at))

	return &models.GamePlayResult{
		Success:       true,
		PointsAwarded: award,
		Message:       message,
		NewStats:      result.snapshot.ToView(),
	}, nil
}

// RedeemReward spends points on a catalog reward. Badges are not evaluated
// because a redemption can only lower the balance.
func (s *gamificationService) RedeemReward(ctx context.Context, req *RedeemRewardRequest) (*models.RedeemResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var reward *models.Reward

	result, err := s.mutate(ctx, mutation{
		op:     "redeem_reward",
		userID: req.UserID,
		apply: func(ctx context.Context, tx repositories.StatsTx, stats *models.UserStats, now time.Time) (*models.UserStats, error) {
			var err error
			reward, err = tx.GetReward(ctx, req.RewardID)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					return nil, NewRewardNotFoundError(req.RewardID)
				}
				return nil, err
			}

			if stats.Points < reward.CostPoints {
				return nil, NewInsufficientBalanceError(stats.Points, reward.CostPoints)
			}

			updated, err := tx.ApplyDelta(ctx, stats, -reward.CostPoints, 0, now)
			if err != nil {
				if errors.Is(err, repositories.ErrInsufficientBalance) {
					return nil, NewInsufficientBalanceError(stats.Points, reward.CostPoints)
				}
				return nil, err
			}

			err = tx.InsertUserReward(ctx, &models.UserReward{
				UserStatsID: stats.ID,
				RewardID:    reward.ID,
				RedeemedAt:  now,
			})
			if err != nil {
				return nil, err
			}

			return updated, nil
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Reward redeemed",
		zap.Int64("user_id", req.UserID),
		zap.Int64("reward_id", reward.ID),
		zap.Int("cost_points", reward.CostPoints),
		zap.Int("balance", result.after.Points),
	)

	s.publish(ctx, result, events.NewRewardRedeemedEvent(req.UserID, reward.ID, reward.Title, reward.CostPoints, result.after.Points, result.at))

	return &models.RedeemResult{
		Success:  true,
		Message:  fmt.Sprintf("You redeemed %s", reward.Title),
		NewStats: result.snapshot.ToView(),
	}, nil
}

// CheckIn records daily activity. A check-in on the UTC day after the previous
// one extends the streak, a second check-in on the same day changes nothing and
// any longer gap restarts the streak at 1.
func (s *gamificationService) CheckIn(ctx context.Context, userID int64) (*models.CheckInResult, error) {
	result, err := s.mutate(ctx, mutation{
		op:       "check_in",
		userID:   userID,
		evaluate: true,
		apply: func(ctx context.Context, tx repositories.StatsTx, stats *models.UserStats, now time.Time) (*models.UserStats, error) {
			next, counted := nextStreak(stats, now)
			if !counted {
				return stats, nil
			}

			updated, err := tx.ApplyDelta(ctx, stats, 0, next-stats.Streak, now)
			if err != nil {
				return nil, err
			}

			if err := tx.MarkCheckIn(ctx, updated, now); err != nil {
				return nil, err
			}

			checkIn := now
			updated.LastCheckIn = &checkIn
			return updated, nil
		},
	})
	if err != nil {
		return nil, err
	}

	changed := result.before.Streak != result.after.Streak
	if changed {
		s.publish(ctx, result, events.NewStreakUpdatedEvent(userID, result.before.Streak, result.after.Streak, result.at))
	} else {
		s.publish(ctx, result)
	}

	return &models.CheckInResult{
		StreakChanged: changed,
		NewStats:      result.snapshot.ToView(),
	}, nil
}

// nextStreak computes the streak after a check-in at now. counted is false
// when the user already checked in on the same UTC day.
func nextStreak(stats *models.UserStats, now time.Time) (int, bool) {
	if stats.LastCheckIn == nil {
		return 1, true
	}

	last := utcDay(*stats.LastCheckIn)
	today := utcDay(now)

	switch days := int(today.Sub(last).Hours() / 24); {
	case days <= 0:
		return stats.Streak, false
	case days == 1:
		return stats.Streak + 1, true
	default:
		return 1, true
	}
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ===============================
// VIEWS
// ===============================

// GetLeaderboard ranks users by points, ties broken by ascending user id
func (s *gamificationService) GetLeaderboard(ctx context.Context, req *LeaderboardRequest) ([]models.LeaderboardEntry, error) {
	limit := s.defaultLimit
	if req != nil && req.Limit > 0 {
		limit = req.Limit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	rows, err := s.repo.Leaderboard(ctx, limit)
	if err != nil {
		return nil, s.translateError("get_leaderboard", 0, err)
	}

	entries := make([]models.LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		name := row.DisplayName
		if name == "" {
			name = s.displayName(ctx, row.UserID)
		}
		entries = append(entries, models.LeaderboardEntry{
			Rank:        i + 1,
			UserID:      row.UserID,
			DisplayName: name,
			Points:      row.Points,
		})
	}

	return entries, nil
}

// ListRewards returns the catalog ordered by cost, then id
func (s *gamificationService) ListRewards(ctx context.Context) ([]models.RewardView, error) {
	rewards, err := s.repo.ListRewards(ctx)
	if err != nil {
		return nil, s.translateError("list_rewards", 0, err)
	}

	SortRewards(rewards)

	views := make([]models.RewardView, 0, len(rewards))
	for _, r := range rewards {
		views = append(views, models.RewardView{
			RewardID:    r.ID,
			Title:       r.Title,
			Description: r.Description,
			CostPoints:  r.CostPoints,
		})
	}

	return views, nil
}

// ===============================
// HELPER METHODS
// ===============================

type mutation struct {
	op       string
	userID   int64
	evaluate bool
	apply    func(ctx context.Context, tx repositories.StatsTx, stats *models.UserStats, now time.Time) (*models.UserStats, error)
}

type mutationResult struct {
	snapshot *models.StatsSnapshot
	before   models.UserStats
	after    models.UserStats
	awarded  []*models.Badge
	at       time.Time
}

// mutate runs one read-modify-write unit for a user: the stats delta, badge
// awards and any log rows commit together while the user's lock is held.
func (s *gamificationService) mutate(ctx context.Context, m mutation) (*mutationResult, error) {
	if err := s.ensureUser(ctx, m.userID); err != nil {
		return nil, err
	}

	var badgesByCode map[string]*models.Badge
	if m.evaluate {
		var err error
		if badgesByCode, err = s.badgesByCode(ctx); err != nil {
			return nil, s.translateError(m.op, m.userID, err)
		}
	}

	var result *mutationResult

	err := s.locks.withLock(m.userID, func() error {
		err := s.repo.WithinUserTx(ctx, m.userID, func(tx repositories.StatsTx) error {
			now := s.clock.Now()

			stats, err := tx.GetOrCreateStats(ctx, m.userID, now)
			if err != nil {
				return err
			}
			before := *stats

			after, err := m.apply(ctx, tx, stats, now)
			if err != nil {
				return err
			}

			var awarded []*models.Badge
			if m.evaluate {
				if awarded, err = s.awardBadges(ctx, tx, after, badgesByCode, now); err != nil {
					return err
				}
			}

			result = &mutationResult{before: before, after: *after, awarded: awarded, at: now}
			return nil
		})
		if err != nil {
			return err
		}

		snapshot, err := s.repo.GetSnapshot(ctx, m.userID)
		if err != nil {
			return fmt.Errorf("failed to read committed stats: %w", err)
		}
		result.snapshot = snapshot
		return nil
	})
	if err != nil {
		return nil, s.translateError(m.op, m.userID, err)
	}

	return result, nil
}

// awardBadges inserts every badge the updated stats newly qualify for
func (s *gamificationService) awardBadges(ctx context.Context, tx repositories.StatsTx, stats *models.UserStats, badgesByCode map[string]*models.Badge, now time.Time) ([]*models.Badge, error) {
	awardedIDs, err := tx.AwardedBadgeIDs(ctx, stats.ID)
	if err != nil {
		return nil, err
	}

	awardedCodes := make(map[string]struct{}, len(awardedIDs))
	for code, badge := range badgesByCode {
		if _, ok := awardedIDs[badge.ID]; ok {
			awardedCodes[code] = struct{}{}
		}
	}

	unlocked := s.evaluator.Evaluate(*stats, awardedCodes, badgesByCode)
	for _, badge := range unlocked {
		err := tx.InsertUserBadge(ctx, &models.UserBadge{
			UserStatsID: stats.ID,
			BadgeID:     badge.ID,
			AwardedAt:   now,
		})
		if err != nil {
			return nil, err
		}
	}

	return unlocked, nil
}

func (s *gamificationService) badgesByCode(ctx context.Context) (map[string]*models.Badge, error) {
	badges, err := s.repo.ListBadges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load badges: %w", err)
	}

	byCode := make(map[string]*models.Badge, len(badges))
	for _, b := range badges {
		byCode[b.Code] = b
	}
	return byCode, nil
}

func (s *gamificationService) ensureUser(ctx context.Context, userID int64) error {
	exists, err := s.directory.Exists(ctx, userID)
	if err != nil {
		s.logger.Error("User directory lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		return NewStoreUnavailableError("user_lookup", err)
	}
	if !exists {
		return NewUserNotFoundError(userID)
	}
	return nil
}

// maxBalance is the largest balance the points column can hold
const maxBalance = math.MaxInt32

// credit adds a non-negative award, rejecting it when the balance would
// exceed maxBalance.
func credit(ctx context.Context, tx repositories.StatsTx, stats *models.UserStats, points int, now time.Time) (*models.UserStats, error) {
	if points > maxBalance || stats.Points > maxBalance-points {
		return nil, NewInvalidInputError("points", fmt.Sprintf("balance cannot exceed %d", maxBalance))
	}
	return tx.ApplyDelta(ctx, stats, points, 0, now)
}

func (s *gamificationService) displayName(ctx context.Context, userID int64) string {
	name, err := s.directory.DisplayName(ctx, userID)
	if err != nil || name == "" {
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			s.logger.Warn("Display name lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		}
		return fmt.Sprintf("user-%d", userID)
	}
	return name
}

// translateError passes domain errors through and reports anything else as
// a store failure.
func (s *gamificationService) translateError(op string, userID int64, err error) error {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}

	s.logger.Error("Gamification store failure",
		zap.String("operation", op),
		zap.Int64("user_id", userID),
		zap.Error(err),
	)
	return NewStoreUnavailableError(op, err)
}

// publish emits the operation's events plus one per awarded badge. Delivery
// is best effort and never fails the caller.
func (s *gamificationService) publish(ctx context.Context, result *mutationResult, evts ...events.Event) {
	if s.events == nil {
		return
	}

	for _, badge := range result.awarded {
		evts = append(evts, events.NewBadgeAwardedEvent(result.after.UserID, badge.ID, badge.Code, badge.Name, result.at))
	}

	for _, evt := range evts {
		if err := s.events.PublishAsync(ctx, evt); err != nil {
			s.logger.Warn("Failed to publish event",
				zap.String("event_type", evt.GetEventType()),
				zap.Error(err),
			)
		}
	}
}

// validateRequest maps validator failures onto InvalidInput
func validateRequest(req interface{}) error {
	if req == nil {
		return NewInvalidInputError("request", "is required")
	}

	if err := validation.ValidateStruct(req); err != nil {
		if fe, ok := validation.FirstFieldError(err); ok {
			return NewInvalidInputError(fe.Field, fe.Reason)
		}
		return NewInvalidInputError("request", err.Error())
	}
	return nil
}
