package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Reward is one entry of a user's reward ledger.
type Reward struct {
	Item   string `json:"item"`
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// RewardList is stored as a JSON array in a text column.
type RewardList []Reward

// Value implements driver.Valuer. A nil list is stored as [].
func (r RewardList) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	return marshalColumn(r)
}

// Scan implements sql.Scanner.
func (r *RewardList) Scan(src interface{}) error {
	return scanColumn(src, r)
}

// Captions maps a base language code ("fr") to a caption in that language.
type Captions map[string]string

// Value implements driver.Valuer.
func (c Captions) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	return marshalColumn(c)
}

// Scan implements sql.Scanner.
func (c *Captions) Scan(src interface{}) error {
	return scanColumn(src, c)
}

// SpotPin is a waypoint uploaded during a journey.
type SpotPin struct {
	Title       string    `json:"title"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	AudioURL    string    `json:"audio_url"`
	ImageURL    string    `json:"image_url"`
	Description string    `json:"description"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// SpotPinList is stored as a JSON array in a text column.
type SpotPinList []SpotPin

// Value implements driver.Valuer.
func (p SpotPinList) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	return marshalColumn(p)
}

// Scan implements sql.Scanner.
func (p *SpotPinList) Scan(src interface{}) error {
	return scanColumn(src, p)
}

func marshalColumn(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func scanColumn(src interface{}, dst interface{}) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}
