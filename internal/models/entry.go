package models

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one visitor's submission into a raffle through a business.
type Entry struct {
	ID               uuid.UUID         `json:"id"`
	BusinessID       uuid.UUID         `json:"business_id"`
	RaffleID         uuid.UUID         `json:"raffle_id"`
	FirstName        string            `json:"first_name"`
	LastName         string            `json:"last_name"`
	Email            string            `json:"email"`
	Phone            string            `json:"phone,omitempty"`
	Answers          map[string]string `json:"answers,omitempty"`
	AgreedToTerms    bool              `json:"agreed_to_terms"`
	MarketingConsent bool              `json:"marketing_consent"`
	IPAddress        string            `json:"ip_address,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// FullName joins first and last name.
func (e *Entry) FullName() string {
	switch {
	case e.FirstName == "":
		return e.LastName
	case e.LastName == "":
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}

// EntryExportRow is an entry joined with its raffle and business for CSV export.
type EntryExportRow struct {
	Entry
	RaffleTitle  string `json:"raffle_title"`
	BusinessName string `json:"business_name"`
}

// BusinessEntryCount is one business's share of a raffle's entries.
type BusinessEntryCount struct {
	BusinessID       uuid.UUID `json:"business_id"`
	BusinessName     string    `json:"business_name"`
	Entries          int       `json:"entries"`
	MarketingConsent int       `json:"marketing_consent"`
}
