package models

import (
	"time"

	"github.com/google/uuid"
)

// SelectionMethod records how a winner was drawn.
type SelectionMethod string

const (
	SelectionManual SelectionMethod = "manual"
	SelectionRandom SelectionMethod = "random"
)

// SelectedBySystem marks winners drawn by the lifecycle scheduler.
const SelectedBySystem = "system"

// Winner pairs a drawn entry with a raffle.
type Winner struct {
	ID               uuid.UUID       `json:"id"`
	RaffleID         uuid.UUID       `json:"raffle_id"`
	BusinessID       uuid.UUID       `json:"business_id"`
	EntryID          uuid.UUID       `json:"entry_id"`
	TicketNumber     string          `json:"ticket_number"`
	WinnerName       string          `json:"winner_name"`
	WinnerEmail      string          `json:"winner_email"`
	WinnerPhone      string          `json:"winner_phone,omitempty"`
	SelectedAt       time.Time       `json:"selected_at"`
	SelectedBy       string          `json:"selected_by"`
	SelectionMethod  SelectionMethod `json:"selection_method"`
	PrizeDescription string          `json:"prize_description,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	NotifiedAt       *time.Time      `json:"notified_at,omitempty"`
}

// IsAutomatic reports whether the winner came from the scheduler's draw.
func (w *Winner) IsAutomatic() bool {
	return w.SelectionMethod == SelectionRandom && w.SelectedBy == SelectedBySystem
}
