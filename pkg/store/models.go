package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Name         string    `gorm:"not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type PersonalityModel struct {
	ID                string `gorm:"primaryKey"`
	FirstName         string
	LastName          string
	FullName          string `gorm:"uniqueIndex;not null"`
	Type              string
	MetaTitle         string
	MetaKeywords      string
	MetaDescription   string
	HeroTitle         string
	HeroDescription   string
	FAQ               datatypes.JSON `gorm:"type:jsonb"`
	SystemInstruction string         `gorm:"type:text;not null"`
	ImgURL            string
	Fee               float64
	CutFee            float64
	Featured          bool           `gorm:"not null;default:false;index"`
	Features          datatypes.JSON `gorm:"type:jsonb"`
	Testimonials      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt         time.Time      `gorm:"not null"`
	UpdatedAt         time.Time
}

// ConversationModel keys one thread per (user, personality). The empty
// personality id is the default, unscoped assistant thread. The composite
// unique index makes at-most-one-thread-per-pair structural.
type ConversationModel struct {
	ID            string    `gorm:"primaryKey"`
	UserID        string    `gorm:"not null;uniqueIndex:idx_conversations_user_personality"`
	PersonalityID string    `gorm:"not null;default:'';uniqueIndex:idx_conversations_user_personality"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time
}

type MessageModel struct {
	ID             string    `gorm:"primaryKey"`
	ConversationID string    `gorm:"not null;index"`
	Role           string    `gorm:"not null"`
	Parts          string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"not null;index"`
}

type PosterSessionModel struct {
	SessionID       string `gorm:"primaryKey"`
	CanvasImage     string `gorm:"type:text;not null"`
	PosterName      string `gorm:"not null"`
	TextSize        float64
	TextX           float64
	TextY           float64
	ImageX          float64
	ImageY          float64
	ImageWidth      float64
	ImageHeight     float64
	Email           string
	StripeSessionID string `gorm:"index"`
	PosterURL       string
	Status          string    `gorm:"not null;default:'pending'"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time
}
