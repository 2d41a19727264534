// Package uploads hands out presigned S3 uploads for raffle and customization media.
package uploads

import (
	"context"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/middleware"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/response"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/storage"
)

// Storage is the object store used for media.
type Storage interface {
	PresignUpload(ctx context.Context, key, contentType string, size int64) (string, error)
	Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error)
	PublicObjectURL(key string) string
	PresignExpire() time.Duration
}

// adminKinds are raffle-level media only administrators upload.
var adminKinds = map[storage.MediaKind]bool{
	storage.MediaPrizeImage: true,
	storage.MediaCoverImage: true,
}

// PresignRequest is the body for POST /uploads/presign.
type PresignRequest struct {
	Kind        storage.MediaKind `json:"kind" binding:"required"`
	Filename    string            `json:"filename"`
	ContentType string            `json:"content_type" binding:"required"`
	Size        int64             `json:"size" binding:"required"`
}

// PresignResponse tells the client where to PUT the file and the URL to save afterwards.
type PresignResponse struct {
	UploadURL   string `json:"upload_url"`
	PublicURL   string `json:"public_url"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Handler handles media upload endpoints.
type Handler struct {
	store  Storage
	logger *zap.Logger
}

// NewHandler creates an upload handler. store may be nil when S3 is not configured.
func NewHandler(store Storage, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// RegisterRoutes mounts upload routes on an authenticated group.
func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	guard := middleware.RequireRole(models.RoleAdmin, models.RoleBusiness)
	g.POST("/uploads/presign", guard, h.Presign)
	g.POST("/uploads", guard, h.Upload)
}

// authorize checks that the caller may upload kind.
func authorize(c *gin.Context, kind storage.MediaKind) bool {
	if adminKinds[kind] && middleware.UserRole(c) != models.RoleAdmin {
		response.Forbidden(c, "only administrators upload raffle media")
		return false
	}
	return true
}

// Presign handles POST /uploads/presign. The browser PUTs the file straight to S3.
func (h *Handler) Presign(c *gin.Context) {
	if h.store == nil {
		response.Internal(c, "S3 not configured")
		return
	}
	var req PresignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ext, err := storage.ValidateMedia(req.Kind, req.ContentType, req.Size)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if !authorize(c, req.Kind) {
		return
	}

	key := storage.MediaKey(req.Kind, ownerOf(c), ext)
	url, err := h.store.PresignUpload(c.Request.Context(), key, req.ContentType, req.Size)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, PresignResponse{
		UploadURL:   url,
		PublicURL:   h.store.PublicObjectURL(key),
		Key:         key,
		ContentType: req.ContentType,
		ExpiresIn:   int(h.store.PresignExpire().Seconds()),
	})
}

// Upload handles POST /uploads (multipart: kind, file). Server-side upload for clients that cannot PUT to S3.
func (h *Handler) Upload(c *gin.Context) {
	if h.store == nil {
		response.Internal(c, "S3 not configured")
		return
	}
	kind := storage.MediaKind(c.PostForm("kind"))
	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file (form field: file)")
		return
	}
	contentType := file.Header.Get("Content-Type")
	ext, err := storage.ValidateMedia(kind, contentType, file.Size)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if !authorize(c, kind) {
		return
	}

	f, err := file.Open()
	if err != nil {
		response.BadRequest(c, "unreadable file")
		return
	}
	defer f.Close()

	key := storage.MediaKey(kind, ownerOf(c), ext)
	url, err := h.store.Upload(c.Request.Context(), key, contentType, f, file.Size)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	h.logger.Info("media uploaded", zap.String("key", key), zap.Int64("size", file.Size))
	response.Created(c, gin.H{"url": url, "key": key})
}

func ownerOf(c *gin.Context) string {
	id := middleware.UserID(c)
	if id == uuid.Nil {
		return "anonymous"
	}
	return id.String()
}
