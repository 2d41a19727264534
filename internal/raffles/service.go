package raffles

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/apperror"
)

// Store is the raffle persistence used by Service.
type Store interface {
	Create(ctx context.Context, raffle *models.Raffle) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Raffle, error)
	List(ctx context.Context, includeArchived bool) ([]models.Raffle, error)
	Update(ctx context.Context, raffle *models.Raffle) error
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

// Assigner fans a new raffle out to every business account.
type Assigner interface {
	AssignToAllBusinesses(ctx context.Context, raffleID uuid.UUID) (int, error)
}

// MediaRemover deletes stored media that a raffle no longer references.
type MediaRemover interface {
	DeleteURLs(ctx context.Context, urls []string)
}

// CreateInput holds the fields of a new raffle.
type CreateInput struct {
	Title          string
	Description    string
	StartDate      time.Time
	EndDate        time.Time
	PrizeImages    []string
	MainImageIndex int
	CoverImage     string
}

// UpdateInput is a partial update. Nil fields keep their current value.
// DeleteImageIndexes refer to the current prize image list; NewImages are appended after deletion.
// MainImageIndex, when set, indexes the resulting list.
type UpdateInput struct {
	Title              *string
	Description        *string
	StartDate          *time.Time
	EndDate            *time.Time
	CoverImage         *string
	MainImageIndex     *int
	DeleteImageIndexes []int
	NewImages          []string
}

// ListFilter narrows List results.
type ListFilter struct {
	IncludeArchived bool
	Status          models.RaffleStatus // derived phase; empty means any
}

// Service implements raffle administration.
type Service struct {
	store    Store
	assigner Assigner
	media    MediaRemover
	now      func() time.Time
	logger   *zap.Logger
}

// NewService creates a raffle service. media may be nil.
func NewService(store Store, assigner Assigner, media MediaRemover, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, assigner: assigner, media: media, now: time.Now, logger: logger}
}

// Create validates and stores a raffle, then assigns it to every business.
// When the fan-out fails the raffle row is removed again.
func (s *Service) Create(ctx context.Context, actor uuid.UUID, in CreateInput) (*View, error) {
	raffle := &models.Raffle{
		Title:          strings.TrimSpace(in.Title),
		Description:    strings.TrimSpace(in.Description),
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		PrizeImages:    compactURLs(in.PrizeImages),
		MainImageIndex: in.MainImageIndex,
		CoverImage:     strings.TrimSpace(in.CoverImage),
	}
	if actor != uuid.Nil {
		raffle.CreatedBy = &actor
	}
	if err := Validate(raffle); err != nil {
		return nil, err
	}
	now := s.now()
	raffle.IsActive = ComputeStatus(raffle, now) == models.RaffleStatusActive

	if err := s.store.Create(ctx, raffle); err != nil {
		return nil, err
	}
	n, err := s.assigner.AssignToAllBusinesses(ctx, raffle.ID)
	if err != nil {
		// Roll back the raffle row; entries require an assignment.
		if _, delErr := s.store.Delete(ctx, raffle.ID); delErr != nil {
			s.logger.Error("remove unassigned raffle", zap.String("raffle_id", raffle.ID.String()), zap.Error(delErr))
		}
		return nil, fmt.Errorf("assign raffle %s: %w", raffle.ID, err)
	}
	s.logger.Info("raffle created",
		zap.String("raffle_id", raffle.ID.String()),
		zap.Int("assignments", n),
	)
	v := NewView(raffle, now)
	return &v, nil
}

// Reassign re-runs the business fan-out for an existing raffle. Businesses that
// already hold an active assignment are left alone.
func (s *Service) Reassign(ctx context.Context, id uuid.UUID) (int, error) {
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return 0, err
	}
	return s.assigner.AssignToAllBusinesses(ctx, id)
}

// Get returns one raffle with its derived status.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	raffle, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	v := NewView(raffle, s.now())
	return &v, nil
}

// List returns raffles with their derived status.
func (s *Service) List(ctx context.Context, f ListFilter) ([]View, error) {
	list, err := s.store.List(ctx, f.IncludeArchived)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]View, 0, len(list))
	for i := range list {
		v := NewView(&list[i], now)
		if f.Status != "" && v.CurrentStatus != f.Status {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// Update merges in onto the stored raffle, re-validates the result and persists it.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*View, error) {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	merged, removed, err := Merge(current, in)
	if err != nil {
		return nil, err
	}
	if err := Validate(merged); err != nil {
		return nil, err
	}
	now := s.now()
	syncLifecycle(merged, now)
	if err := s.store.Update(ctx, merged); err != nil {
		return nil, err
	}
	if s.media != nil && len(removed) > 0 {
		s.media.DeleteURLs(ctx, removed)
	}
	s.logger.Info("raffle updated", zap.String("raffle_id", id.String()), zap.Int("images_removed", len(removed)))
	v := NewView(merged, now)
	return &v, nil
}

// syncLifecycle realigns the scheduler bookkeeping with the raffle's window after an edit.
// Existing winners are kept when a drawn raffle is reopened; the automatic draw stays once-only.
func syncLifecycle(r *models.Raffle, now time.Time) {
	switch ComputeStatus(r, now) {
	case models.RaffleStatusActive:
		r.IsActive, r.Status = true, ""
	case models.RaffleStatusEnded:
		r.IsActive, r.Status = false, string(models.RaffleStatusEnded)
	default:
		r.IsActive, r.Status = false, ""
	}
}

// Delete removes a raffle and its assignments. Entries and winners are retained.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	removed, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.logger.Info("raffle deleted", zap.String("raffle_id", id.String()), zap.Int64("assignments_removed", removed))
	return nil
}

// Merge applies in to a copy of current. It returns the merged raffle and the media
// URLs that are no longer referenced.
func Merge(current *models.Raffle, in UpdateInput) (*models.Raffle, []string, error) {
	merged := *current
	if in.Title != nil {
		merged.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		merged.Description = strings.TrimSpace(*in.Description)
	}
	if in.StartDate != nil {
		merged.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		merged.EndDate = *in.EndDate
	}
	var removed []string
	if in.CoverImage != nil {
		cover := strings.TrimSpace(*in.CoverImage)
		if cover != current.CoverImage && current.CoverImage != "" {
			removed = append(removed, current.CoverImage)
		}
		merged.CoverImage = cover
	}

	deleted := make(map[int]bool, len(in.DeleteImageIndexes))
	for _, idx := range in.DeleteImageIndexes {
		if idx < 0 || idx >= len(current.PrizeImages) {
			return nil, nil, apperror.Field("delete_image_indexes", "index "+strconv.Itoa(idx)+" is out of range")
		}
		deleted[idx] = true
	}
	images := make([]string, 0, len(current.PrizeImages)+len(in.NewImages))
	for i, img := range current.PrizeImages {
		if deleted[i] {
			removed = append(removed, img)
			continue
		}
		images = append(images, img)
	}
	images = append(images, compactURLs(in.NewImages)...)
	merged.PrizeImages = images

	switch {
	case in.MainImageIndex != nil:
		merged.MainImageIndex = *in.MainImageIndex
	case deleted[current.MainImageIndex]:
		merged.MainImageIndex = 0
	default:
		merged.MainImageIndex = shiftIndex(current.MainImageIndex, deleted)
	}
	return &merged, removed, nil
}

// shiftIndex follows idx across the removal of the deleted positions.
func shiftIndex(idx int, deleted map[int]bool) int {
	positions := make([]int, 0, len(deleted))
	for d := range deleted {
		positions = append(positions, d)
	}
	sort.Ints(positions)
	shift := 0
	for _, d := range positions {
		if d < idx {
			shift++
		}
	}
	return idx - shift
}

// Validate checks raffle invariants and returns a Validation error with field messages.
func Validate(r *models.Raffle) error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Description, validation.Length(0, 5000)),
		validation.Field(&r.StartDate, validation.Required),
		validation.Field(&r.EndDate, validation.Required, validation.By(func(interface{}) error {
			if !r.StartDate.Before(r.EndDate) {
				return errors.New("must be after start_date")
			}
			return nil
		})),
		validation.Field(&r.PrizeImages,
			validation.Required.Error("at least one prize image is required"),
			validation.Length(1, models.MaxPrizeImages).Error("at most "+strconv.Itoa(models.MaxPrizeImages)+" prize images are allowed"),
		),
		validation.Field(&r.MainImageIndex, validation.By(func(interface{}) error {
			if r.MainImageIndex < 0 || r.MainImageIndex >= len(r.PrizeImages) {
				return errors.New("must reference an existing prize image")
			}
			return nil
		})),
		validation.Field(&r.CoverImage, validation.Required.Error("cover image is required")),
	)
	return apperror.FromValidation(err)
}

func compactURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
