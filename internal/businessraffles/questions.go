package businessraffles

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/apperror"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()\-]{5,19}$`)

// validateQuestions checks the question list shape. It assigns ids to questions that
// arrive without one and clears options on non-select questions.
func validateQuestions(qs []models.CustomQuestion, newID func() (string, error)) ([]models.CustomQuestion, map[string]string) {
	fields := map[string]string{}
	if len(qs) > models.MaxCustomQuestions {
		fields["custom_questions"] = "at most " + strconv.Itoa(models.MaxCustomQuestions) + " questions are allowed"
		return nil, fields
	}
	out := make([]models.CustomQuestion, 0, len(qs))
	seen := map[string]bool{}
	for i, q := range qs {
		key := fmt.Sprintf("custom_questions[%d]", i)
		q.ID = strings.TrimSpace(q.ID)
		q.Prompt = strings.TrimSpace(q.Prompt)
		if q.ID == "" {
			id, err := newID()
			if err != nil {
				fields[key] = "could not assign id"
				continue
			}
			q.ID = id
		}
		if seen[q.ID] {
			fields[key+".id"] = "duplicate question id"
		}
		seen[q.ID] = true
		if q.Prompt == "" {
			fields[key+".prompt"] = "cannot be blank"
		}
		switch q.Type {
		case models.QuestionText, models.QuestionEmail, models.QuestionPhone:
			q.Options = nil
		case models.QuestionSelect:
			opts := make([]string, 0, len(q.Options))
			for _, o := range q.Options {
				if o = strings.TrimSpace(o); o != "" {
					opts = append(opts, o)
				}
			}
			if len(opts) == 0 {
				fields[key+".options"] = "select questions need at least one option"
			}
			q.Options = opts
		default:
			fields[key+".type"] = "must be one of text, email, phone, select"
		}
		out = append(out, q)
	}
	return out, fields
}

// ValidateAnswers checks an entrant's answers against the assignment's questions and
// returns the trimmed answers for known questions only.
func ValidateAnswers(qs []models.CustomQuestion, answers map[string]string) (map[string]string, error) {
	clean := make(map[string]string, len(qs))
	fields := map[string]string{}
	for _, q := range qs {
		v := strings.TrimSpace(answers[q.ID])
		if v == "" {
			if q.Required {
				fields["answers."+q.ID] = "this question is required"
			}
			continue
		}
		if err := checkAnswer(q, v); err != nil {
			fields["answers."+q.ID] = err.Error()
			continue
		}
		clean[q.ID] = v
	}
	if len(fields) > 0 {
		return nil, apperror.Validation(fields)
	}
	return clean, nil
}

func checkAnswer(q models.CustomQuestion, v string) error {
	switch q.Type {
	case models.QuestionText:
		return validation.Validate(v, validation.Length(0, 1000))
	case models.QuestionEmail:
		return validation.Validate(v, is.Email)
	case models.QuestionPhone:
		if !phonePattern.MatchString(v) {
			return errors.New("must be a valid phone number")
		}
		return nil
	case models.QuestionSelect:
		for _, o := range q.Options {
			if o == v {
				return nil
			}
		}
		return errors.New("must be one of the listed options")
	}
	return errors.New("unsupported question type")
}
