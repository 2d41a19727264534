package winners

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/middleware"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(f *fixture, userID uuid.UUID, role models.Role) *gin.Engine {
	r := gin.New()
	g := r.Group("/", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Set(middleware.ContextUserRole, role)
		c.Next()
	})
	NewHandler(f.engine, f.winners, nil).RegisterRoutes(g)
	return r
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlerSelectManualTwice(t *testing.T) {
	f := newFixture(t)
	raffle := f.raffles.add("Summer", fixedNow.Add(-time.Hour))
	x := f.entries.add(raffle.ID, "x@example.com")
	r := newTestRouter(f, uuid.New(), models.RoleAdmin)
	body := gin.H{"selection_method": "manual", "entry_id": x.ID}

	w := doJSON(r, http.MethodPost, "/raffles/"+raffle.ID.String()+"/winners", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "SUM-0001")

	w = doJSON(r, http.MethodPost, "/raffles/"+raffle.ID.String()+"/winners", body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandlerSelectBeforeEndIs422(t *testing.T) {
	f := newFixture(t)
	raffle := f.raffles.add("Summer", fixedNow.Add(time.Hour))
	f.entries.add(raffle.ID, "x@example.com")
	r := newTestRouter(f, uuid.New(), models.RoleAdmin)

	w := doJSON(r, http.MethodPost, "/raffles/"+raffle.ID.String()+"/winners", gin.H{"selection_method": "random"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandlerSelectRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	raffle := f.raffles.add("Summer", fixedNow.Add(-time.Hour))
	r := newTestRouter(f, uuid.New(), models.RoleBusiness)

	w := doJSON(r, http.MethodPost, "/raffles/"+raffle.ID.String()+"/winners", gin.H{"selection_method": "random"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandlerBusinessSeesOwnWinners(t *testing.T) {
	f := newFixture(t)
	raffle := f.raffles.add("Summer", fixedNow.Add(-time.Hour))
	mine := f.entries.add(raffle.ID, "mine@example.com")
	theirs := f.entries.add(raffle.ID, "theirs@example.com")
	for _, e := range []models.Entry{mine, theirs} {
		_, err := f.engine.SelectWinner(context.Background(), uuid.New(), raffle.ID, SelectOptions{Method: models.SelectionManual, EntryID: e.ID})
		require.NoError(t, err)
	}
	r := newTestRouter(f, mine.BusinessID, models.RoleBusiness)

	w := doJSON(r, http.MethodGet, "/raffles/"+raffle.ID.String()+"/winners", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []models.Winner `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, mine.ID, resp.Data[0].EntryID)

	w = doJSON(r, http.MethodGet, "/business/winners", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mine@example.com")
	assert.NotContains(t, w.Body.String(), "theirs@example.com")
}

func TestHandlerResendSkipsNotifiedWinners(t *testing.T) {
	f := newFixture(t)
	raffle := f.raffles.add("Summer", fixedNow.Add(-time.Hour))
	for _, email := range []string{"a@example.com", "b@example.com"} {
		e := f.entries.add(raffle.ID, email)
		_, err := f.engine.SelectWinner(context.Background(), uuid.New(), raffle.ID, SelectOptions{Method: models.SelectionManual, EntryID: e.ID})
		require.NoError(t, err)
	}
	notified := fixedNow
	f.winners.list[0].NotifiedAt = &notified
	f.notifier.notices = nil
	r := newTestRouter(f, uuid.New(), models.RoleAdmin)

	w := doJSON(r, http.MethodPost, "/raffles/"+raffle.ID.String()+"/winners/notify", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"queued":1`)
	require.Len(t, f.notifier.notices, 1)
	assert.Equal(t, "b@example.com", f.notifier.notices[0].Winner.WinnerEmail)

	w = doJSON(newTestRouter(f, uuid.New(), models.RoleBusiness), http.MethodPost, "/raffles/"+raffle.ID.String()+"/winners/notify", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(r, http.MethodPost, "/raffles/"+uuid.NewString()+"/winners/notify", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
