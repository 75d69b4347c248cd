package models

import "time"

// Spot is a geotagged post with audio, image and transcription.
type Spot struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Username           string    `gorm:"size:64;not null;index" json:"username"`
	SpotName           string    `gorm:"size:255;not null" json:"spotname"`
	Latitude           float64   `gorm:"index:idx_spots_position" json:"latitude"`
	Longitude          float64   `gorm:"index:idx_spots_position" json:"longitude"`
	Category           string    `gorm:"size:64;index;default:'Food'" json:"category"`
	Description        string    `gorm:"type:text" json:"description"`
	OriginalLanguage   string    `gorm:"size:8;default:'en'" json:"original_language"`
	Caption            string    `gorm:"type:text" json:"caption"`
	Transcription      string    `gorm:"type:text" json:"transcription"`
	TranslatedCaptions Captions  `gorm:"type:text" json:"translated_captions"`
	Summary            string    `gorm:"type:text" json:"summary"`
	AudioURL           string    `gorm:"size:1024" json:"audio_url"`
	ImageURL           string    `gorm:"size:1024" json:"image"`
	ViewCount          int       `gorm:"not null;default:0" json:"viewcount"`
	LikesCount         int       `gorm:"not null;default:0" json:"likes_count"`
	CreatedAt          time.Time `json:"created_at"`
}
