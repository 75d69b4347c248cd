package streak

import "time"

// Status reports what Advance did with a post event.
type Status string

const (
	StatusUpdated          Status = "updated"
	StatusAlreadyDoneToday Status = "already_done_today"
)

const (
	// DefaultRewardReason is recorded on the reward issued for a five day streak.
	DefaultRewardReason = "5-day posting streak"
	// DefaultRewardItem is what the user receives for that streak.
	DefaultRewardItem = "Free drink at partner cafe"
	// DefaultRewardAt is the streak length that triggers the reward.
	DefaultRewardAt = 5

	dayLayout = "2006-01-02"
)

// Reward is one entry of a user's append-only reward ledger.
type Reward struct {
	Item   string `json:"item"`
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// State is the streak-relevant subset of a user record.
type State struct {
	Username     string     `json:"username"`
	LatestUpdate *time.Time `json:"latest_update"`
	StreaksCount int        `json:"streaks_count"`
	Rewards      []Reward   `json:"rewards"`
}

// Rules parameterizes reward issuance.
type Rules struct {
	RewardAt     int
	RewardItem   string
	RewardReason string
}

// DefaultRules issues one reward when a streak reaches five days.
var DefaultRules = Rules{
	RewardAt:     DefaultRewardAt,
	RewardItem:   DefaultRewardItem,
	RewardReason: DefaultRewardReason,
}

// DayKey returns the UTC calendar day of t as YYYY-MM-DD.
// All day-boundary decisions in this package go through it.
func DayKey(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// Advance applies a post event at now using DefaultRules.
func Advance(s State, now time.Time) (State, Status) {
	return DefaultRules.Advance(s, now)
}

// Advance applies a post event at now. The input state is never modified;
// the returned state shares nothing mutable with it.
func (r Rules) Advance(s State, now time.Time) (State, Status) {
	today := DayKey(now)
	if s.LatestUpdate != nil && DayKey(*s.LatestUpdate) == today {
		return s, StatusAlreadyDoneToday
	}

	next := State{
		Username: s.Username,
		Rewards:  append([]Reward(nil), s.Rewards...),
	}

	yesterday := DayKey(now.UTC().AddDate(0, 0, -1))
	if s.LatestUpdate != nil && DayKey(*s.LatestUpdate) == yesterday {
		next.StreaksCount = s.StreaksCount + 1
	} else {
		next.StreaksCount = 1
	}

	if next.StreaksCount == r.RewardAt && !hasReward(next.Rewards, r.RewardReason, today) {
		next.Rewards = append(next.Rewards, Reward{
			Item:   r.RewardItem,
			Date:   today,
			Reason: r.RewardReason,
		})
	}

	at := now.UTC()
	next.LatestUpdate = &at
	return next, StatusUpdated
}

// IsStale reports whether a streak last advanced at latest must be reset at now:
// its day is neither today nor yesterday. A nil latest is stale.
func IsStale(latest *time.Time, now time.Time) bool {
	if latest == nil {
		return true
	}
	day := DayKey(*latest)
	return day != DayKey(now) && day != DayKey(now.UTC().AddDate(0, 0, -1))
}

func hasReward(rewards []Reward, reason, date string) bool {
	for _, r := range rewards {
		if r.Reason == reason && r.Date == date {
			return true
		}
	}
	return false
}

// dayStart returns UTC midnight of t's UTC day.
func dayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
