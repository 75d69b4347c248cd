package models

import "time"

// Badge accumulates a user's leaderboard score.
type Badge struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Username  string    `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Scores    int       `gorm:"not null;default:0" json:"scores"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Follow is a directed follower -> following edge.
type Follow struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Follower  string    `gorm:"size:64;not null;uniqueIndex:idx_follow_pair;index" json:"follower"`
	Following string    `gorm:"size:64;not null;uniqueIndex:idx_follow_pair;index" json:"following"`
	CreatedAt time.Time `json:"created_at"`
}

// Journey is a trip with waypoint pins. A user has at most one active journey.
type Journey struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Username    string      `gorm:"size:64;not null;index" json:"username"`
	JourneyName string      `gorm:"size:255" json:"journeyname"`
	Source      string      `gorm:"size:255" json:"source"`
	Destination *SpotPin    `gorm:"serializer:json;type:text" json:"destination"`
	SpotPins    SpotPinList `gorm:"type:text" json:"spotpins"`
	Active      bool        `gorm:"not null;default:false;index" json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// All lists every model for migration.
func All() []interface{} {
	return []interface{}{&User{}, &Spot{}, &Badge{}, &Follow{}, &Journey{}, &UploadedFile{}}
}
