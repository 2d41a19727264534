package models

import (
	"time"

	"github.com/google/uuid"
)

// QuestionType is the closed set of custom question kinds.
type QuestionType string

const (
	QuestionText   QuestionType = "text"
	QuestionEmail  QuestionType = "email"
	QuestionPhone  QuestionType = "phone"
	QuestionSelect QuestionType = "select"
)

const (
	MaxCustomQuestions = 5
	MaxAdditionalMedia = 10
)

// CustomQuestion is a tenant-defined question shown on the entry form.
type CustomQuestion struct {
	ID       string       `json:"id"`
	Prompt   string       `json:"prompt"`
	Type     QuestionType `json:"type"`
	Required bool         `json:"required"`
	Options  []string     `json:"options,omitempty"` // select only
}

// Customization is a tenant's branding and question bundle for one raffle.
type Customization struct {
	Logo              string           `json:"logo,omitempty"`
	CoverPhoto        string           `json:"cover_photo,omitempty"`
	BackgroundVideo   string           `json:"background_video,omitempty"`
	PrimaryColor      string           `json:"primary_color,omitempty"`
	RedirectURL       string           `json:"redirect_url,omitempty"`
	Template          string           `json:"template,omitempty"`
	CustomQuestions   []CustomQuestion `json:"custom_questions,omitempty"`
	CustomDescription string           `json:"custom_description,omitempty"`
	AdditionalMedia   []string         `json:"additional_media,omitempty"`
}

// BusinessRaffle links a business (tenant) to a raffle plus its customization.
type BusinessRaffle struct {
	ID            uuid.UUID     `json:"id"`
	BusinessID    uuid.UUID     `json:"business_id"`
	RaffleID      uuid.UUID     `json:"raffle_id"`
	IsActive      bool          `json:"is_active"`
	ShareCode     string        `json:"share_code"`
	Customization Customization `json:"customization"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
