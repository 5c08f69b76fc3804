package registry

import "time"

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// Record is a live session's registry entry. It lives in Redis with a TTL
// so crashed sessions age out instead of lingering as phantom actives.
type Record struct {
	ID           string    `json:"id"`
	Status       Status    `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	TurnCount    int       `json:"turn_count"`
}

func (r *Record) RedisKey() string {
	return "mentor:session:" + r.ID
}

// Archived is the durable row written when a session ends.
type Archived struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	StartedAt time.Time `gorm:"not null" json:"started_at"`
	EndedAt   time.Time `gorm:"not null;index" json:"ended_at"`
	TurnCount int       `gorm:"default:0" json:"turn_count"`
	CreatedAt time.Time `json:"-"`
}
