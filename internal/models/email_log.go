package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailType for raffle notifications.
const (
	EmailTypeEntryConfirmation  = "entry_confirmation"
	EmailTypeWinnerNotification = "winner_notification"
	EmailTypeBusinessWelcome    = "business_welcome"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusPending = "pending"
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
)

// EmailLog records notification emails.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	RaffleID       *uuid.UUID `json:"raffle_id,omitempty"`
	EntryID        *uuid.UUID `json:"entry_id,omitempty"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
