package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User is an app account. Passwords are stored as bcrypt hashes only.
type User struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Username       string     `gorm:"size:64;not null;uniqueIndex" json:"username"`
	PasswordHash   string     `gorm:"size:255" json:"-"`
	PreferLang     string     `gorm:"size:8;default:'EN'" json:"preferlng"`
	ProfilePic     string     `gorm:"size:512" json:"profilepic"`
	Latitude       *float64   `json:"latitude"`
	Longitude      *float64   `json:"longitude"`
	AreaName       string     `gorm:"size:128;index" json:"area_name"`
	LatestUpdate   *time.Time `gorm:"index" json:"latest_update"`
	StreaksCount   int        `gorm:"not null;default:0" json:"streaks_count"`
	Rewards        RewardList `gorm:"type:text" json:"rewards"`
	PostCount      int        `gorm:"not null;default:0" json:"postcount"`
	OnJourney      bool       `gorm:"not null;default:false" json:"status"`
	FollowersCount int        `gorm:"not null;default:0" json:"followers_count"`
	FollowingCount int        `gorm:"not null;default:0" json:"following_count"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// BeforeCreate trims the username and starts an empty reward ledger.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	u.Username = strings.TrimSpace(u.Username)
	if u.Rewards == nil {
		u.Rewards = RewardList{}
	}
	return nil
}

// HasHome reports whether the home location was set.
func (u *User) HasHome() bool {
	return u.Latitude != nil && u.Longitude != nil
}
