package uploads

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/middleware"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/storage"
)

type fakeStorage struct {
	keys     []string
	uploaded []byte
}

func (f *fakeStorage) PresignUpload(_ context.Context, key, _ string, _ int64) (string, error) {
	f.keys = append(f.keys, key)
	return "https://bucket.example.com/" + key + "?sig=1", nil
}

func (f *fakeStorage) Upload(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	f.keys = append(f.keys, key)
	b, err := io.ReadAll(body)
	f.uploaded = b
	return f.PublicObjectURL(key), err
}

func (f *fakeStorage) PublicObjectURL(key string) string { return "https://cdn.example.com/" + key }

func (f *fakeStorage) PresignExpire() time.Duration { return 15 * time.Minute }

func router(store Storage, userID uuid.UUID, role models.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Set(middleware.ContextUserRole, role)
		c.Next()
	})
	NewHandler(store, nil).RegisterRoutes(g)
	return r
}

func presign(r http.Handler, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/uploads/presign", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPresign(t *testing.T) {
	store := &fakeStorage{}
	user := uuid.New()
	r := router(store, user, models.RoleBusiness)

	w := presign(r, gin.H{"kind": "logo", "content_type": "image/png", "size": 1024})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data PresignResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.Data.Key, "media/logo/"+user.String()+"/"))
	assert.True(t, strings.HasSuffix(resp.Data.Key, ".png"))
	assert.Equal(t, "https://cdn.example.com/"+resp.Data.Key, resp.Data.PublicURL)
	assert.Equal(t, 900, resp.Data.ExpiresIn)
}

func TestPresignRejections(t *testing.T) {
	store := &fakeStorage{}
	r := router(store, uuid.New(), models.RoleBusiness)

	assert.Equal(t, http.StatusBadRequest, presign(r, gin.H{"kind": "logo", "content_type": "image/png", "size": 6 * storage.MB}).Code)
	assert.Equal(t, http.StatusBadRequest, presign(r, gin.H{"kind": "background_video", "content_type": "image/png", "size": 10}).Code)
	assert.Equal(t, http.StatusBadRequest, presign(r, gin.H{"kind": "banner", "content_type": "image/png", "size": 10}).Code)
	assert.Equal(t, http.StatusForbidden, presign(r, gin.H{"kind": "prize_image", "content_type": "image/png", "size": 10}).Code)
	assert.Empty(t, store.keys)

	admin := router(store, uuid.New(), models.RoleAdmin)
	assert.Equal(t, http.StatusOK, presign(admin, gin.H{"kind": "prize_image", "content_type": "image/png", "size": 10}).Code)

	assert.Equal(t, http.StatusForbidden, presign(router(store, uuid.New(), models.RoleRep), gin.H{"kind": "logo", "content_type": "image/png", "size": 10}).Code)
}

func TestPresignWithoutStorage(t *testing.T) {
	r := router(nil, uuid.New(), models.RoleAdmin)
	assert.Equal(t, http.StatusInternalServerError, presign(r, gin.H{"kind": "logo", "content_type": "image/png", "size": 10}).Code)
}

func TestUploadMultipart(t *testing.T) {
	store := &fakeStorage{}
	r := router(store, uuid.New(), models.RoleBusiness)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("kind", "cover_photo"))
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="cover.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, _ = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, []byte("jpeg-bytes"), store.uploaded)
	require.Len(t, store.keys, 1)
	assert.True(t, strings.HasSuffix(store.keys[0], ".jpg"))
	assert.Contains(t, w.Body.String(), "https://cdn.example.com/media/cover_photo/")
}
