package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/spotmap/spotmap/models"
	"github.com/spotmap/spotmap/streak"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned by Create on a duplicate username.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrHomeAlreadySet is returned by SetHome when a home location exists.
	ErrHomeAlreadySet = errors.New("home location already set")
)

// UserRepository persists users, their streak fields and badge scores.
// It implements streak.Store.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a UserRepository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

var _ streak.Store = (*UserRepository)(nil)

// Create inserts a user.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", strings.TrimSpace(u.Username)).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrUsernameTaken
	}
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUsernameTaken
		}
		return err
	}
	return nil
}

// FindByUsername returns the user with exactly this username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// FindByUsernameFold matches the username case-insensitively.
func (r *UserRepository) FindByUsernameFold(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("LOWER(username) = ?", strings.ToLower(username)).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// SetHome stores the home position and area name, only if none is set yet.
func (r *UserRepository) SetHome(ctx context.Context, username string, lat, lon float64, area string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? AND latitude IS NULL AND longitude IS NULL", username).
		Updates(map[string]interface{}{"latitude": lat, "longitude": lon, "area_name": area})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByUsername(ctx, username); err != nil {
			return err
		}
		return ErrHomeAlreadySet
	}
	return nil
}

// RecountPosts recomputes post_count from the spots table and returns it.
func (r *UserRepository) RecountPosts(ctx context.Context, username string) (int, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Spot{}).Where("username = ?", username).Count(&n).Error; err != nil {
		return 0, err
	}
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).
		UpdateColumn("post_count", n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

// AddBadgeScore adds delta to the user's badge score, creating the row on first use.
func (r *UserRepository) AddBadgeScore(ctx context.Context, username string, delta int) (int, error) {
	badge := models.Badge{Username: username, Scores: delta}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"scores": gorm.Expr("scores + ?", delta)}),
	}).Create(&badge).Error
	if err != nil {
		return 0, err
	}
	return r.BadgeScore(ctx, username)
}

// BadgeScore returns the user's score, 0 when there is no badge row.
func (r *UserRepository) BadgeScore(ctx context.Context, username string) (int, error) {
	var b models.Badge
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return b.Scores, nil
}

// LeaderboardEntry is one row of an area leaderboard.
type LeaderboardEntry struct {
	Username string `json:"username"`
	Scores   int    `json:"scores"`
}

// AreaLeaderboard returns badge scores of users living in area, highest first.
func (r *UserRepository) AreaLeaderboard(ctx context.Context, area string) ([]LeaderboardEntry, error) {
	entries := []LeaderboardEntry{}
	err := r.db.WithContext(ctx).Table("badges").
		Select("badges.username AS username, badges.scores AS scores").
		Joins("JOIN users ON users.username = badges.username").
		Where("users.area_name = ?", area).
		Order("badges.scores DESC, badges.username ASC").
		Scan(&entries).Error
	return entries, err
}

// LoadStreak implements streak.Store.
func (r *UserRepository) LoadStreak(ctx context.Context, username string) (streak.State, error) {
	var u models.User
	err := r.db.WithContext(ctx).
		Select("username", "latest_update", "streaks_count", "rewards").
		Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return streak.State{}, streak.ErrNotFound
	}
	if err != nil {
		return streak.State{}, err
	}
	return toState(u), nil
}

// SaveStreak implements streak.Store as a compare-and-swap on latest_update.
func (r *UserRepository) SaveStreak(ctx context.Context, prev, next streak.State) error {
	q := r.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", prev.Username)
	if prev.LatestUpdate == nil {
		q = q.Where("latest_update IS NULL")
	} else {
		q = q.Where("latest_update = ?", prev.LatestUpdate.UTC())
	}

	var latest interface{}
	if next.LatestUpdate != nil {
		latest = next.LatestUpdate.UTC()
	}
	res := q.UpdateColumns(map[string]interface{}{
		"latest_update": latest,
		"streaks_count": next.StreaksCount,
		"rewards":       fromRewards(next.Rewards),
	})
	if res.Error != nil {
		return fmt.Errorf("save streak: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return streak.ErrConflict
	}
	return nil
}

// ResetStale implements streak.Store.
func (r *UserRepository) ResetStale(ctx context.Context, from, until time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("streaks_count <> ?", 1).
		Where("latest_update IS NULL OR latest_update < ? OR latest_update >= ?", from.UTC(), until.UTC()).
		UpdateColumn("streaks_count", 1)
	return res.RowsAffected, res.Error
}

func toState(u models.User) streak.State {
	s := streak.State{
		Username:     u.Username,
		StreaksCount: u.StreaksCount,
		Rewards:      make([]streak.Reward, 0, len(u.Rewards)),
	}
	if u.LatestUpdate != nil {
		t := u.LatestUpdate.UTC()
		s.LatestUpdate = &t
	}
	for _, rw := range u.Rewards {
		s.Rewards = append(s.Rewards, streak.Reward{Item: rw.Item, Date: rw.Date, Reason: rw.Reason})
	}
	return s
}

func fromRewards(in []streak.Reward) models.RewardList {
	out := make(models.RewardList, 0, len(in))
	for _, rw := range in {
		out = append(out, models.Reward{Item: rw.Item, Date: rw.Date, Reason: rw.Reason})
	}
	return out
}
