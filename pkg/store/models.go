package store

import "time"

// GORM models used for persistence.
type UserModel struct {
	ID        string `gorm:"primaryKey"`
	UserName  string `gorm:"uniqueIndex;not null"`
	FirstName string
	LastName  string
	Role      string `gorm:"not null"`
	Status    string
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

type MessageModel struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	OwnerID   string    `gorm:"not null;index:idx_message_owner_created,priority:1"`
	Text      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;index:idx_message_owner_created,priority:2"`
	UpdatedAt time.Time `gorm:"not null"`
}
