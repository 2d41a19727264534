package raffles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/apperror"
)

type memStore struct {
	raffles map[uuid.UUID]*models.Raffle
	deleted []uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{raffles: map[uuid.UUID]*models.Raffle{}}
}

func (m *memStore) Create(_ context.Context, r *models.Raffle) error {
	r.ID = uuid.New()
	cp := *r
	m.raffles[r.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Raffle, error) {
	r, ok := m.raffles[id]
	if !ok {
		return nil, apperror.ErrRaffleNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) List(_ context.Context, includeArchived bool) ([]models.Raffle, error) {
	var out []models.Raffle
	for _, r := range m.raffles {
		if r.Archived && !includeArchived {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, r *models.Raffle) error {
	if _, ok := m.raffles[r.ID]; !ok {
		return apperror.ErrRaffleNotFound
	}
	cp := *r
	m.raffles[r.ID] = &cp
	return nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) (int64, error) {
	if _, ok := m.raffles[id]; !ok {
		return 0, apperror.ErrRaffleNotFound
	}
	delete(m.raffles, id)
	m.deleted = append(m.deleted, id)
	return 3, nil
}

type recordingAssigner struct {
	raffles []uuid.UUID
	err     error
}

func (a *recordingAssigner) AssignToAllBusinesses(_ context.Context, raffleID uuid.UUID) (int, error) {
	if a.err != nil {
		return 0, a.err
	}
	a.raffles = append(a.raffles, raffleID)
	return 4, nil
}

type recordingMedia struct {
	urls []string
}

func (m *recordingMedia) DeleteURLs(_ context.Context, urls []string) {
	m.urls = append(m.urls, urls...)
}

var fixedNow = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *memStore, *recordingAssigner, *recordingMedia) {
	store := newMemStore()
	assigner := &recordingAssigner{}
	media := &recordingMedia{}
	svc := NewService(store, assigner, media, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc, store, assigner, media
}

func validInput() CreateInput {
	return CreateInput{
		Title:       "Summer Giveaway",
		Description: "Win a bike",
		StartDate:   fixedNow.Add(-time.Hour),
		EndDate:     fixedNow.Add(24 * time.Hour),
		PrizeImages: []string{"a.png", "b.png"},
		CoverImage:  "cover.png",
	}
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	require.ErrorIs(t, err, apperror.ErrValidationFailed)
	e, ok := apperror.As(err)
	require.True(t, ok)
	return e.Fields
}

func TestCreateFansOutToBusinesses(t *testing.T) {
	svc, store, assigner, _ := newTestService()
	actor := uuid.New()

	v, err := svc.Create(context.Background(), actor, validInput())
	require.NoError(t, err)
	assert.Equal(t, models.RaffleStatusActive, v.CurrentStatus)
	assert.True(t, v.IsActive)
	assert.Equal(t, &actor, v.CreatedBy)
	assert.Equal(t, []uuid.UUID{v.ID}, assigner.raffles)
	assert.Contains(t, store.raffles, v.ID)
}

func TestCreateScheduledRaffleIsInactive(t *testing.T) {
	svc, _, _, _ := newTestService()
	in := validInput()
	in.StartDate = fixedNow.Add(time.Hour)

	v, err := svc.Create(context.Background(), uuid.New(), in)
	require.NoError(t, err)
	assert.Equal(t, models.RaffleStatusScheduled, v.CurrentStatus)
	assert.False(t, v.IsActive)
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateInput)
		field  string
	}{
		{"inverted dates", func(in *CreateInput) { in.EndDate = in.StartDate.Add(-time.Minute) }, "end_date"},
		{"equal dates", func(in *CreateInput) { in.EndDate = in.StartDate }, "end_date"},
		{"no images", func(in *CreateInput) { in.PrizeImages = nil }, "prize_images"},
		{"blank images", func(in *CreateInput) { in.PrizeImages = []string{" ", ""} }, "prize_images"},
		{"too many images", func(in *CreateInput) {
			in.PrizeImages = make([]string, models.MaxPrizeImages+1)
			for i := range in.PrizeImages {
				in.PrizeImages[i] = "img.png"
			}
		}, "prize_images"},
		{"main index out of range", func(in *CreateInput) { in.MainImageIndex = 2 }, "main_image_index"},
		{"negative main index", func(in *CreateInput) { in.MainImageIndex = -1 }, "main_image_index"},
		{"missing cover", func(in *CreateInput) { in.CoverImage = "" }, "cover_image"},
		{"missing title", func(in *CreateInput) { in.Title = "  " }, "title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, assigner, _ := newTestService()
			in := validInput()
			tt.mutate(&in)
			_, err := svc.Create(context.Background(), uuid.New(), in)
			assert.Contains(t, fieldsOf(t, err), tt.field)
			assert.Empty(t, store.raffles)
			assert.Empty(t, assigner.raffles)
		})
	}
}

func TestCreateTenImagesAllowed(t *testing.T) {
	svc, _, _, _ := newTestService()
	in := validInput()
	in.PrizeImages = make([]string, models.MaxPrizeImages)
	for i := range in.PrizeImages {
		in.PrizeImages[i] = "img.png"
	}
	in.MainImageIndex = 9
	_, err := svc.Create(context.Background(), uuid.New(), in)
	require.NoError(t, err)
}

func TestCreateAssignFailure(t *testing.T) {
	svc, store, assigner, _ := newTestService()
	assigner.err = errors.New("db down")
	_, err := svc.Create(context.Background(), uuid.New(), validInput())
	require.Error(t, err)
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
	assert.Empty(t, store.raffles)
	assert.Len(t, store.deleted, 1)
}

func seedRaffle(t *testing.T, svc *Service, images []string, main int) *View {
	t.Helper()
	in := validInput()
	in.PrizeImages = images
	in.MainImageIndex = main
	v, err := svc.Create(context.Background(), uuid.New(), in)
	require.NoError(t, err)
	return v
}

func TestUpdateMainImageFollowsDeletion(t *testing.T) {
	svc, _, _, media := newTestService()
	v := seedRaffle(t, svc, []string{"a", "b", "c", "d"}, 2)

	got, err := svc.Update(context.Background(), v.ID, UpdateInput{
		DeleteImageIndexes: []int{0, 3},
		NewImages:          []string{"e"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "e"}, got.PrizeImages)
	assert.Equal(t, 1, got.MainImageIndex)
	assert.Equal(t, "c", got.MainImageURL)
	assert.ElementsMatch(t, []string{"a", "d"}, media.urls)
}

func TestUpdateDeletingMainResetsToZero(t *testing.T) {
	svc, _, _, _ := newTestService()
	v := seedRaffle(t, svc, []string{"a", "b", "c"}, 1)

	got, err := svc.Update(context.Background(), v.ID, UpdateInput{DeleteImageIndexes: []int{1}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, got.PrizeImages)
	assert.Equal(t, 0, got.MainImageIndex)
}

func TestUpdateRejectsDeletingEveryImage(t *testing.T) {
	svc, store, _, media := newTestService()
	v := seedRaffle(t, svc, []string{"a", "b"}, 0)

	_, err := svc.Update(context.Background(), v.ID, UpdateInput{DeleteImageIndexes: []int{0, 1}})
	assert.Contains(t, fieldsOf(t, err), "prize_images")
	assert.Equal(t, []string{"a", "b"}, store.raffles[v.ID].PrizeImages)
	assert.Empty(t, media.urls)
}

func TestUpdateRejectsOverflowAndBadIndexes(t *testing.T) {
	svc, _, _, _ := newTestService()
	v := seedRaffle(t, svc, []string{"a", "b"}, 0)

	_, err := svc.Update(context.Background(), v.ID, UpdateInput{DeleteImageIndexes: []int{5}})
	assert.Contains(t, fieldsOf(t, err), "delete_image_indexes")

	many := make([]string, models.MaxPrizeImages-1)
	for i := range many {
		many[i] = "x"
	}
	_, err = svc.Update(context.Background(), v.ID, UpdateInput{NewImages: many})
	assert.Contains(t, fieldsOf(t, err), "prize_images")
}

func TestUpdateMergesPartialFields(t *testing.T) {
	svc, _, _, media := newTestService()
	v := seedRaffle(t, svc, []string{"a"}, 0)

	title := "Winter Giveaway"
	cover := "new-cover.png"
	got, err := svc.Update(context.Background(), v.ID, UpdateInput{Title: &title, CoverImage: &cover})
	require.NoError(t, err)
	assert.Equal(t, "Winter Giveaway", got.Title)
	assert.Equal(t, "Win a bike", got.Description)
	assert.Equal(t, "new-cover.png", got.CoverImage)
	assert.Equal(t, []string{"cover.png"}, media.urls)

	end := v.StartDate.Add(-time.Hour)
	_, err = svc.Update(context.Background(), v.ID, UpdateInput{EndDate: &end})
	assert.Contains(t, fieldsOf(t, err), "end_date")
}

func TestUpdateExplicitMainIndex(t *testing.T) {
	svc, _, _, _ := newTestService()
	v := seedRaffle(t, svc, []string{"a", "b"}, 0)

	idx := 2
	got, err := svc.Update(context.Background(), v.ID, UpdateInput{NewImages: []string{"c"}, MainImageIndex: &idx})
	require.NoError(t, err)
	assert.Equal(t, "c", got.MainImageURL)
}

func TestUpdateMissingRaffle(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.Update(context.Background(), uuid.New(), UpdateInput{})
	assert.ErrorIs(t, err, apperror.ErrRaffleNotFound)
}

func TestDelete(t *testing.T) {
	svc, store, _, _ := newTestService()
	v := seedRaffle(t, svc, []string{"a"}, 0)

	require.NoError(t, svc.Delete(context.Background(), v.ID))
	assert.Equal(t, []uuid.UUID{v.ID}, store.deleted)
	assert.ErrorIs(t, svc.Delete(context.Background(), v.ID), apperror.ErrRaffleNotFound)
}

func TestListFiltersByDerivedStatus(t *testing.T) {
	svc, store, _, _ := newTestService()
	seedRaffle(t, svc, []string{"a"}, 0)

	ended := validInput()
	ended.StartDate = fixedNow.Add(-48 * time.Hour)
	ended.EndDate = fixedNow.Add(-24 * time.Hour)
	endedView, err := svc.Create(context.Background(), uuid.New(), ended)
	require.NoError(t, err)
	store.raffles[endedView.ID].IsActive = true // stale flag

	list, err := svc.List(context.Background(), ListFilter{Status: models.RaffleStatusEnded})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, endedView.ID, list[0].ID)

	all, err := svc.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestReassign(t *testing.T) {
	svc, _, assigner, _ := newTestService()
	v := seedRaffle(t, svc, []string{"a"}, 0)

	n, err := svc.Reassign(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Len(t, assigner.raffles, 2)

	_, err = svc.Reassign(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperror.ErrRaffleNotFound)
}

func TestUpdateWindowResyncsLifecycleFlags(t *testing.T) {
	t.Run("active moved into the future", func(t *testing.T) {
		svc, store, _, _ := newTestService()
		v := seedRaffle(t, svc, []string{"a"}, 0)
		require.True(t, store.raffles[v.ID].IsActive)

		start, end := fixedNow.Add(48*time.Hour), fixedNow.Add(72*time.Hour)
		got, err := svc.Update(context.Background(), v.ID, UpdateInput{StartDate: &start, EndDate: &end})
		require.NoError(t, err)
		assert.Equal(t, models.RaffleStatusScheduled, got.CurrentStatus)
		assert.False(t, store.raffles[v.ID].IsActive)
		assert.Empty(t, store.raffles[v.ID].Status)
	})

	t.Run("ended raffle reopened", func(t *testing.T) {
		svc, store, _, _ := newTestService()
		v := seedRaffle(t, svc, []string{"a"}, 0)
		stored := store.raffles[v.ID]
		stored.StartDate, stored.EndDate = fixedNow.Add(-48*time.Hour), fixedNow.Add(-time.Hour)
		stored.IsActive, stored.Status = false, string(models.RaffleStatusEnded)

		end := fixedNow.Add(24 * time.Hour)
		got, err := svc.Update(context.Background(), v.ID, UpdateInput{EndDate: &end})
		require.NoError(t, err)
		assert.Equal(t, models.RaffleStatusActive, got.CurrentStatus)
		assert.True(t, store.raffles[v.ID].IsActive)
		assert.Empty(t, store.raffles[v.ID].Status)
	})

	t.Run("active raffle closed early", func(t *testing.T) {
		svc, store, _, _ := newTestService()
		v := seedRaffle(t, svc, []string{"a"}, 0)

		end := fixedNow.Add(-time.Minute)
		_, err := svc.Update(context.Background(), v.ID, UpdateInput{EndDate: &end})
		require.NoError(t, err)
		assert.False(t, store.raffles[v.ID].IsActive)
		assert.Equal(t, string(models.RaffleStatusEnded), store.raffles[v.ID].Status)
	})
}
