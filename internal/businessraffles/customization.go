package businessraffles

import (
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/apperror"
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// templates are the entry page layouts a business may pick.
var templates = []interface{}{"classic", "modern", "minimal", "bold"}

func httpURL(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an http or https URL")
	}
	return nil
}

// normalizeCustomization trims and validates c, returning the stored form.
func normalizeCustomization(c models.Customization, newID func() (string, error)) (models.Customization, error) {
	c.Logo = strings.TrimSpace(c.Logo)
	c.CoverPhoto = strings.TrimSpace(c.CoverPhoto)
	c.BackgroundVideo = strings.TrimSpace(c.BackgroundVideo)
	c.PrimaryColor = strings.TrimSpace(c.PrimaryColor)
	c.RedirectURL = strings.TrimSpace(c.RedirectURL)
	c.Template = strings.TrimSpace(c.Template)
	c.CustomDescription = strings.TrimSpace(c.CustomDescription)

	media := make([]string, 0, len(c.AdditionalMedia))
	for _, m := range c.AdditionalMedia {
		if m = strings.TrimSpace(m); m != "" {
			media = append(media, m)
		}
	}
	c.AdditionalMedia = media

	fields := map[string]string{}
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Logo, is.URL),
		validation.Field(&c.CoverPhoto, is.URL),
		validation.Field(&c.BackgroundVideo, is.URL),
		validation.Field(&c.PrimaryColor, validation.Match(colorPattern).Error("must be a hex color like #1A2B3C")),
		validation.Field(&c.RedirectURL, validation.By(httpURL)),
		validation.Field(&c.Template, validation.In(templates...)),
		validation.Field(&c.CustomDescription, validation.Length(0, 2000)),
		validation.Field(&c.AdditionalMedia, validation.Length(0, models.MaxAdditionalMedia).
			Error("at most "+strconv.Itoa(models.MaxAdditionalMedia)+" media items are allowed")),
	)
	if ferr, ok := apperror.As(apperror.FromValidation(err)); ok {
		for k, v := range ferr.Fields {
			fields[k] = v
		}
	} else if err != nil {
		return c, err
	}

	qs, qfields := validateQuestions(c.CustomQuestions, newID)
	for k, v := range qfields {
		fields[k] = v
	}
	c.CustomQuestions = qs
	if len(fields) > 0 {
		return c, apperror.Validation(fields)
	}
	return c, nil
}
