package storage

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// MediaKind is the slot an uploaded file is destined for.
type MediaKind string

const (
	MediaPrizeImage      MediaKind = "prize_image"
	MediaCoverImage      MediaKind = "cover_image"
	MediaLogo            MediaKind = "logo"
	MediaCoverPhoto      MediaKind = "cover_photo"
	MediaBackgroundVideo MediaKind = "background_video"
	MediaAdditional      MediaKind = "additional_media"
)

const (
	MB = 1024 * 1024

	MaxImageSize           = 5 * MB
	MaxBackgroundVideoSize = 50 * MB
	MaxAdditionalMediaSize = 25 * MB
)

var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

var videoTypes = map[string]string{
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/webm":      ".webm",
}

// MediaRule is the size and type policy for one kind.
type MediaRule struct {
	MaxSize     int64
	AllowImages bool
	AllowVideos bool
}

var mediaRules = map[MediaKind]MediaRule{
	MediaPrizeImage:      {MaxSize: MaxImageSize, AllowImages: true},
	MediaCoverImage:      {MaxSize: MaxImageSize, AllowImages: true},
	MediaLogo:            {MaxSize: MaxImageSize, AllowImages: true},
	MediaCoverPhoto:      {MaxSize: MaxImageSize, AllowImages: true},
	MediaBackgroundVideo: {MaxSize: MaxBackgroundVideoSize, AllowVideos: true},
	MediaAdditional:      {MaxSize: MaxAdditionalMediaSize, AllowImages: true, AllowVideos: true},
}

// RuleFor returns the policy for kind.
func RuleFor(kind MediaKind) (MediaRule, bool) {
	r, ok := mediaRules[kind]
	return r, ok
}

// ValidateMedia checks a proposed upload against its kind's policy and returns the
// file extension to store it under.
func ValidateMedia(kind MediaKind, contentType string, size int64) (string, error) {
	rule, ok := mediaRules[kind]
	if !ok {
		return "", fmt.Errorf("unknown media kind %q", kind)
	}
	ct := strings.ToLower(strings.TrimSpace(contentType))
	ext, isImage := imageTypes[ct]
	if !isImage {
		ext = videoTypes[ct]
	}
	switch {
	case isImage && !rule.AllowImages, !isImage && ext != "" && !rule.AllowVideos, ext == "":
		return "", fmt.Errorf("content type %q is not allowed for %s", contentType, kind)
	}
	if size <= 0 {
		return "", fmt.Errorf("file size is required")
	}
	if size > rule.MaxSize {
		return "", fmt.Errorf("file exceeds %dMB limit for %s", rule.MaxSize/MB, kind)
	}
	return ext, nil
}

// MediaKey returns the object key media/{kind}/{owner}/{random}{ext}.
func MediaKey(kind MediaKind, owner, ext string) string {
	return path.Join("media", string(kind), owner, uuid.NewString()+ext)
}
