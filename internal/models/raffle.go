package models

import (
	"time"

	"github.com/google/uuid"
)

// RaffleStatus is the lifecycle phase derived from a raffle's time window.
type RaffleStatus string

const (
	RaffleStatusScheduled RaffleStatus = "scheduled"
	RaffleStatusActive    RaffleStatus = "active"
	RaffleStatusEnded     RaffleStatus = "ended"
)

// MaxPrizeImages bounds the prize media list of a raffle.
const MaxPrizeImages = 10

// Raffle is a time-boxed prize drawing defined by an administrator.
type Raffle struct {
	ID             uuid.UUID  `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        time.Time  `json:"end_date"`
	PrizeImages    []string   `json:"prize_images"`
	MainImageIndex int        `json:"main_image_index"`
	CoverImage     string     `json:"cover_image"`
	IsActive       bool       `json:"is_active"`
	Status         string     `json:"status,omitempty"` // scheduler marker; "ended" once transitioned
	Archived       bool       `json:"archived"`
	ArchivedAt     *time.Time `json:"archived_at,omitempty"`
	CreatedBy      *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// MainImage returns the designated main prize image, or "" when the index is out of range.
func (r *Raffle) MainImage() string {
	if r.MainImageIndex < 0 || r.MainImageIndex >= len(r.PrizeImages) {
		return ""
	}
	return r.PrizeImages[r.MainImageIndex]
}
