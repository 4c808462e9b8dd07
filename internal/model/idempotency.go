package model

import "time"

// IdempotencyKey stores the first completed response for a mutating request.
type IdempotencyKey struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Key            string     `gorm:"column:idempotency_key;size:200;uniqueIndex" json:"key"`
	RequestHash    string     `gorm:"size:64" json:"request_hash"` // sha256 of method|path|body|user
	Method         string     `gorm:"size:10" json:"method"`
	Path           string     `gorm:"size:255" json:"path"`
	UserID         string     `gorm:"size:64" json:"user_id"`
	ResponseStatus int        `json:"response_status"` // 0 => not completed yet
	ResponseBody   []byte     `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at"`
}
