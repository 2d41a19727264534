package raffles

import (
	"time"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
)

// ComputeStatus derives a raffle's phase from its window. It is the only source
// consulted for entry gating and draw eligibility; the stored is_active flag lags
// behind it between scheduler runs.
func ComputeStatus(r *models.Raffle, now time.Time) models.RaffleStatus {
	switch {
	case now.Before(r.StartDate):
		return models.RaffleStatusScheduled
	case now.Before(r.EndDate):
		return models.RaffleStatusActive
	default:
		return models.RaffleStatusEnded
	}
}

// View is a raffle with its derived phase attached.
type View struct {
	*models.Raffle
	CurrentStatus models.RaffleStatus `json:"current_status"`
	MainImageURL  string              `json:"main_image_url"`
}

// NewView wraps r with its status at now.
func NewView(r *models.Raffle, now time.Time) View {
	return View{Raffle: r, CurrentStatus: ComputeStatus(r, now), MainImageURL: r.MainImage()}
}
