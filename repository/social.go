package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/spotmap/spotmap/models"
)

var (
	// ErrSelfFollow is returned when a user tries to follow themselves.
	ErrSelfFollow = errors.New("cannot follow yourself")
	// ErrNoActiveJourney is returned when the user has no journey in progress.
	ErrNoActiveJourney = errors.New("no active journey")
	// ErrJourneyActive is returned when starting a journey while one is in progress.
	ErrJourneyActive = errors.New("journey already in progress")
)

// SocialRepository manages follow edges and journeys.
type SocialRepository struct {
	db *gorm.DB
}

// NewSocialRepository creates a SocialRepository.
func NewSocialRepository(db *gorm.DB) *SocialRepository {
	return &SocialRepository{db: db}
}

// Follow creates the edge follower -> following and bumps both counters.
// It reports false when the edge already existed.
func (r *SocialRepository) Follow(ctx context.Context, follower, following string) (bool, error) {
	if follower == following {
		return false, ErrSelfFollow
	}
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUsers(tx, follower, following); err != nil {
			return err
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Follow{Follower: follower, Following: following})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		return bumpCounts(tx, follower, following, 1)
	})
	return created, err
}

// Unfollow removes the edge and decrements both counters. It reports false
// when there was no edge.
func (r *SocialRepository) Unfollow(ctx context.Context, follower, following string) (bool, error) {
	if follower == following {
		return false, ErrSelfFollow
	}
	removed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("follower = ? AND following = ?", follower, following).Delete(&models.Follow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true
		return bumpCounts(tx, follower, following, -1)
	})
	return removed, err
}

// FollowInfo lists who the user follows and who follows them.
type FollowInfo struct {
	Username       string   `json:"username"`
	FollowersCount int      `json:"followers_count"`
	FollowingCount int      `json:"following_count"`
	Followers      []string `json:"followers"`
	Following      []string `json:"following"`
}

// Follows returns the follow lists of username.
func (r *SocialRepository) Follows(ctx context.Context, username string) (*FollowInfo, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	info := &FollowInfo{
		Username:       u.Username,
		FollowersCount: u.FollowersCount,
		FollowingCount: u.FollowingCount,
		Followers:      []string{},
		Following:      []string{},
	}
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).Where("following = ?", username).
		Order("follower ASC").Pluck("follower", &info.Followers).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).Where("follower = ?", username).
		Order("following ASC").Pluck("following", &info.Following).Error; err != nil {
		return nil, err
	}
	return info, nil
}

func requireUsers(tx *gorm.DB, usernames ...string) error {
	var n int64
	if err := tx.Model(&models.User{}).Where("username IN ?", usernames).Count(&n).Error; err != nil {
		return err
	}
	if int(n) != len(usernames) {
		return ErrUserNotFound
	}
	return nil
}

func bumpCounts(tx *gorm.DB, follower, following string, delta int) error {
	if err := tx.Model(&models.User{}).Where("username = ?", follower).
		UpdateColumn("following_count", gorm.Expr("following_count + ?", delta)).Error; err != nil {
		return err
	}
	return tx.Model(&models.User{}).Where("username = ?", following).
		UpdateColumn("followers_count", gorm.Expr("followers_count + ?", delta)).Error
}

// ActiveJourney returns the user's journey in progress.
func (r *SocialRepository) ActiveJourney(ctx context.Context, username string) (*models.Journey, error) {
	var j models.Journey
	err := r.db.WithContext(ctx).Where("username = ? AND active = ?", username, true).
		Order("id DESC").First(&j).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActiveJourney
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// StartJourney opens a journey and marks the user as travelling.
func (r *SocialRepository) StartJourney(ctx context.Context, username, name, source string) (*models.Journey, error) {
	j := &models.Journey{Username: username, JourneyName: name, Source: source, SpotPins: models.SpotPinList{}, Active: true}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Journey{}).Where("username = ? AND active = ?", username, true).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrJourneyActive
		}
		if err := tx.Create(j).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("username = ?", username).UpdateColumn("on_journey", true).Error
	})
	if err != nil {
		return nil, err
	}
	return j, nil
}

// AppendPin adds a pin to the active journey.
func (r *SocialRepository) AppendPin(ctx context.Context, username string, pin models.SpotPin) (*models.Journey, error) {
	var out models.Journey
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var j models.Journey
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("username = ? AND active = ?", username, true).Order("id DESC").First(&j).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoActiveJourney
		}
		if err != nil {
			return err
		}
		j.SpotPins = append(j.SpotPins, pin)
		if err := tx.Model(&j).UpdateColumn("spot_pins", j.SpotPins).Error; err != nil {
			return err
		}
		out = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// EndJourney closes the active journey. The destination becomes its last pin.
func (r *SocialRepository) EndJourney(ctx context.Context, username string) (*models.Journey, error) {
	var out models.Journey
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var j models.Journey
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("username = ? AND active = ?", username, true).Order("id DESC").First(&j).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoActiveJourney
		}
		if err != nil {
			return err
		}
		j.Active = false
		if n := len(j.SpotPins); n > 0 {
			last := j.SpotPins[n-1]
			j.Destination = &last
		}
		if err := tx.Model(&j).Select("active", "destination").Updates(&j).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("username = ?", username).UpdateColumn("on_journey", false).Error; err != nil {
			return err
		}
		out = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
