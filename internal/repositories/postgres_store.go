package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"unigame/internal/database"
	"unigame/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const pqUniqueViolation = "23505"

// postgresStore implements GamificationRepository on PostgreSQL
type postgresStore struct {
	*BaseRepository
	retry RetryPolicy
}

// NewPostgresStore creates a new PostgreSQL gamification repository
func NewPostgresStore(db *database.Manager, logger *zap.Logger, retry RetryPolicy) GamificationRepository {
	return &postgresStore{
		BaseRepository: NewBaseRepository(db, logger),
		retry:          retry,
	}
}

// pgTx adapts a *sql.Tx to StatsTx
type pgTx struct {
	tx     *sql.Tx
	userID int64
}

// ===============================
// TRANSACTIONS
// ===============================

func (r *postgresStore) WithinUserTx(ctx context.Context, userID int64, fn func(tx StatsTx) error) error {
	return withConflictRetry(ctx, r.retry, r.logger, func() error {
		return r.WithTransaction(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(tx *sql.Tx) error {
			return fn(&pgTx{tx: tx, userID: userID})
		})
	})
}

func (t *pgTx) GetOrCreateStats(ctx context.Context, userID int64, now time.Time) (*models.UserStats, error) {
	if userID != t.userID {
		return nil, fmt.Errorf("transaction scoped to user %d cannot read user %d", t.userID, userID)
	}

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO user_stats (user_id, points, streak, last_activity, version)
		VALUES ($1, 0, 0, $2, 0)
		ON CONFLICT (user_id) DO NOTHING`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure stats row: %w", err)
	}

	stats := &models.UserStats{}
	err = t.tx.QueryRowContext(ctx, `
		SELECT id, user_id, points, streak, last_activity, last_check_in, version
		FROM user_stats
		WHERE user_id = $1
		FOR UPDATE`, userID).Scan(
		&stats.ID, &stats.UserID, &stats.Points, &stats.Streak, &stats.LastActivity, &stats.LastCheckIn, &stats.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock stats row: %w", err)
	}

	return stats, nil
}

func (t *pgTx) ApplyDelta(ctx context.Context, stats *models.UserStats, pointsDelta, streakDelta int, now time.Time) (*models.UserStats, error) {
	if stats.Points+pointsDelta < 0 {
		return nil, ErrInsufficientBalance
	}
	if stats.Streak+streakDelta < 0 {
		return nil, ErrNegativeStreak
	}

	updated := &models.UserStats{}
	err := t.tx.QueryRowContext(ctx, `
		UPDATE user_stats
		SET points = points + $1,
		    streak = streak + $2,
		    last_activity = $3,
		    version = version + 1
		WHERE id = $4 AND version = $5 AND points + $1 >= 0 AND streak + $2 >= 0
		RETURNING id, user_id, points, streak, last_activity, last_check_in, version`,
		pointsDelta, streakDelta, now, stats.ID, stats.Version,
	).Scan(&updated.ID, &updated.UserID, &updated.Points, &updated.Streak, &updated.LastActivity, &updated.LastCheckIn, &updated.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("stats %d at version %d: %w", stats.ID, stats.Version, ErrConflict)
		}
		return nil, fmt.Errorf("failed to apply delta: %w", err)
	}

	return updated, nil
}

func (t *pgTx) MarkCheckIn(ctx context.Context, stats *models.UserStats, at time.Time) error {
	// The row is locked by GetOrCreateStats, so no version check is needed.
	if _, err := t.tx.ExecContext(ctx, `UPDATE user_stats SET last_check_in = $1 WHERE id = $2`, at, stats.ID); err != nil {
		return fmt.Errorf("failed to record check-in: %w", err)
	}
	return nil
}

func (t *pgTx) AwardedBadgeIDs(ctx context.Context, userStatsID int64) (map[int64]struct{}, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT badge_id FROM user_badges WHERE user_stats_id = $1`, userStatsID)
	if err != nil {
		return nil, fmt.Errorf("failed to load awarded badges: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan badge id: %w", err)
		}
		ids[id] = struct{}{}
	}

	return ids, rows.Err()
}

func (t *pgTx) InsertUserBadge(ctx context.Context, award *models.UserBadge) error {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO user_badges (user_stats_id, badge_id, awarded_at)
		VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT uq_user_badges_stats_badge DO NOTHING
		RETURNING id`, award.UserStatsID, award.BadgeID, award.AwardedAt).Scan(&award.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("badge %d for stats %d: %w", award.BadgeID, award.UserStatsID, ErrDuplicateBadge)
		}
		return fmt.Errorf("failed to insert user badge: %w", err)
	}
	return nil
}

func (t *pgTx) GetReward(ctx context.Context, rewardID int64) (*models.Reward, error) {
	return scanReward(t.tx.QueryRowContext(ctx,
		`SELECT id, title, description, cost_points FROM rewards WHERE id = $1`, rewardID))
}

func (t *pgTx) InsertUserReward(ctx context.Context, redemption *models.UserReward) error {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO user_rewards (user_stats_id, reward_id, redeemed_at)
		VALUES ($1, $2, $3)
		RETURNING id`, redemption.UserStatsID, redemption.RewardID, redemption.RedeemedAt).Scan(&redemption.ID)
	if err != nil {
		return fmt.Errorf("failed to insert user reward: %w", err)
	}
	return nil
}

// ===============================
// READS
// ===============================

// GetSnapshot reads stats, badges and redemptions inside one repeatable-read
// transaction so the three result sets agree with each other.
func (r *postgresStore) GetSnapshot(ctx context.Context, userID int64) (*models.StatsSnapshot, error) {
	var snapshot *models.StatsSnapshot

	err := r.WithTransaction(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, func(tx *sql.Tx) error {
		stats := &models.UserStats{}
		err := tx.QueryRowContext(ctx, `
			SELECT id, user_id, points, streak, last_activity, last_check_in, version
			FROM user_stats WHERE user_id = $1`, userID).Scan(
			&stats.ID, &stats.UserID, &stats.Points, &stats.Streak, &stats.LastActivity, &stats.LastCheckIn, &stats.Version,
		)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to read stats: %w", err)
		}

		badges, err := loadAwardedBadges(ctx, tx, stats.ID)
		if err != nil {
			return err
		}

		rewards, err := loadRedeemedRewards(ctx, tx, stats.ID)
		if err != nil {
			return err
		}

		snapshot = &models.StatsSnapshot{Stats: stats, Badges: badges, Rewards: rewards}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return snapshot, nil
}

func loadAwardedBadges(ctx context.Context, tx *sql.Tx, statsID int64) ([]models.AwardedBadge, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT b.id, b.code, b.name, b.description, b.icon_url, ub.awarded_at
		FROM user_badges ub
		JOIN badges b ON b.id = ub.badge_id
		WHERE ub.user_stats_id = $1
		ORDER BY ub.awarded_at, ub.id`, statsID)
	if err != nil {
		return nil, fmt.Errorf("failed to read badges: %w", err)
	}
	defer rows.Close()

	badges := make([]models.AwardedBadge, 0)
	for rows.Next() {
		b := &models.Badge{}
		var awardedAt time.Time
		if err := rows.Scan(&b.ID, &b.Code, &b.Name, &b.Description, &b.IconURL, &awardedAt); err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		badges = append(badges, models.AwardedBadge{Badge: b, AwardedAt: awardedAt})
	}

	return badges, rows.Err()
}

func loadRedeemedRewards(ctx context.Context, tx *sql.Tx, statsID int64) ([]models.RedeemedReward, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT r.id, r.title, r.description, r.cost_points, ur.redeemed_at
		FROM user_rewards ur
		JOIN rewards r ON r.id = ur.reward_id
		WHERE ur.user_stats_id = $1
		ORDER BY ur.redeemed_at, ur.id`, statsID)
	if err != nil {
		return nil, fmt.Errorf("failed to read redemptions: %w", err)
	}
	defer rows.Close()

	rewards := make([]models.RedeemedReward, 0)
	for rows.Next() {
		rw := &models.Reward{}
		var redeemedAt time.Time
		if err := rows.Scan(&rw.ID, &rw.Title, &rw.Description, &rw.CostPoints, &redeemedAt); err != nil {
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		rewards = append(rewards, models.RedeemedReward{Reward: rw, RedeemedAt: redeemedAt})
	}

	return rewards, rows.Err()
}

func (r *postgresStore) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardRow, error) {
	rows, err := r.QueryContext(ctx, `
		SELECT s.user_id, COALESCE(NULLIF(u.display_name, ''), u.username, ''), s.points
		FROM user_stats s
		LEFT JOIN users u ON u.id = s.user_id
		ORDER BY s.points DESC, s.user_id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	result := make([]models.LeaderboardRow, 0, limit)
	for rows.Next() {
		var row models.LeaderboardRow
		if err := rows.Scan(&row.UserID, &row.DisplayName, &row.Points); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		result = append(result, row)
	}

	return result, rows.Err()
}

func (r *postgresStore) ListBadges(ctx context.Context) ([]*models.Badge, error) {
	rows, err := r.QueryContext(ctx, `SELECT id, code, name, description, icon_url FROM badges ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	defer rows.Close()

	var badges []*models.Badge
	for rows.Next() {
		b := &models.Badge{}
		if err := rows.Scan(&b.ID, &b.Code, &b.Name, &b.Description, &b.IconURL); err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		badges = append(badges, b)
	}

	return badges, rows.Err()
}

func (r *postgresStore) ListRewards(ctx context.Context) ([]*models.Reward, error) {
	rows, err := r.QueryContext(ctx, `SELECT id, title, description, cost_points FROM rewards ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []*models.Reward
	for rows.Next() {
		rw := &models.Reward{}
		if err := rows.Scan(&rw.ID, &rw.Title, &rw.Description, &rw.CostPoints); err != nil {
			return nil, fmt.Errorf("failed to scan reward: %w", err)
		}
		rewards = append(rewards, rw)
	}

	return rewards, rows.Err()
}

func (r *postgresStore) GetReward(ctx context.Context, rewardID int64) (*models.Reward, error) {
	return scanReward(r.QueryRowContext(ctx,
		`SELECT id, title, description, cost_points FROM rewards WHERE id = $1`, rewardID))
}

func scanReward(row *sql.Row) (*models.Reward, error) {
	rw := &models.Reward{}
	if err := row.Scan(&rw.ID, &rw.Title, &rw.Description, &rw.CostPoints); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read reward: %w", err)
	}
	return rw, nil
}

// SeedCatalog upserts badges by code and rewards by title
func (r *postgresStore) SeedCatalog(ctx context.Context, badges []*models.Badge, rewards []*models.Reward) error {
	return r.WithTransaction(ctx, nil, func(tx *sql.Tx) error {
		for _, b := range badges {
			err := tx.QueryRowContext(ctx, `
				INSERT INTO badges (code, name, description, icon_url)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (code) DO UPDATE
				SET name = EXCLUDED.name, description = EXCLUDED.description, icon_url = EXCLUDED.icon_url
				RETURNING id`, b.Code, b.Name, b.Description, b.IconURL).Scan(&b.ID)
			if err != nil {
				return fmt.Errorf("failed to seed badge %s: %w", b.Code, err)
			}
		}

		for _, rw := range rewards {
			err := tx.QueryRowContext(ctx, `
				INSERT INTO rewards (title, description, cost_points)
				VALUES ($1, $2, $3)
				ON CONFLICT (title) DO UPDATE
				SET description = EXCLUDED.description, cost_points = EXCLUDED.cost_points
				RETURNING id`, rw.Title, rw.Description, rw.CostPoints).Scan(&rw.ID)
			if err != nil {
				var pqErr *pq.Error
				if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
					return fmt.Errorf("reward %q conflicts with an existing row: %w", rw.Title, err)
				}
				return fmt.Errorf("failed to seed reward %s: %w", rw.Title, err)
			}
		}

		r.logger.Info("Catalog seeded",
			zap.Int("badges", len(badges)),
			zap.Int("rewards", len(rewards)),
		)
		return nil
	})
}

func (r *postgresStore) Ping(ctx context.Context) error {
	status := r.db.Health(ctx)
	if status.Status != database.StatusHealthy {
		return fmt.Errorf("database unhealthy: %v", status.Errors)
	}
	return nil
}
