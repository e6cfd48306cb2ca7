package domain

import "time"

// AuditLog represents one recorded bot action.
type AuditLog struct {
	ID         string
	TelegramID int64
	Action     string
	Resource   string
	Metadata   string
	CreatedAt  time.Time
}
