package endpoints

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"igclient/pkg/errors"
	"igclient/pkg/signature"
)

var validate = validator.New()

// ProfileEdit carries the accounts/edit_profile/ parameters. Gender uses the
// vendor's numeric coding.
type ProfileEdit struct {
	Username    string `validate:"required"`
	Email       string `validate:"required,email"`
	Gender      int    `validate:"oneof=1 2 3"`
	PhoneNumber string
	FirstName   string
	Biography   string
	ExternalURL string `validate:"omitempty,url"`
}

// Params validates the edit and builds its ordered parameter set
func (p ProfileEdit) Params() (*signature.Params, error) {
	if err := validate.Struct(p); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			field := strings.ToLower(verrs[0].Field())
			return nil, errors.NewValidation(field, "failed "+verrs[0].Tag()+" check")
		}
		return nil, errors.NewValidation("profile", err.Error())
	}
	return signature.NewParams().
		Set("username", p.Username).
		Set("email", p.Email).
		Set("gender", strconv.Itoa(p.Gender)).
		Set("phone_number", p.PhoneNumber).
		Set("first_name", p.FirstName).
		Set("biography", p.Biography).
		Set("external_url", p.ExternalURL), nil
}

// Story text limits the vendor enforces
const (
	maxStoryHashtags = 4
	maxStoryURLs     = 1
	maxTitleLen      = 16
)

var (
	hashtagRe = regexp.MustCompile(`#\w+`)
	urlRe     = regexp.MustCompile(`https?://\S+`)
)

// ValidateStoryText checks the hashtag and link budget of story text
func ValidateStoryText(text string) error {
	if n := len(hashtagRe.FindAllString(text, -1)); n > maxStoryHashtags {
		return errors.NewValidation("hashtags",
			fmt.Sprintf("%d hashtags exceeds the limit of %d", n, maxStoryHashtags))
	}
	if n := len(urlRe.FindAllString(text, -1)); n > maxStoryURLs {
		return errors.NewValidation("urls",
			fmt.Sprintf("%d links exceeds the limit of %d", n, maxStoryURLs))
	}
	return nil
}

// ValidateTitle checks an igtv-style title
func ValidateTitle(title string) error {
	if err := validate.Var(title, fmt.Sprintf("max=%d", maxTitleLen)); err != nil {
		return errors.NewValidation("title",
			fmt.Sprintf("longer than %d characters", maxTitleLen))
	}
	return nil
}

// ValidateRankToken checks the "<user_id>_<uuid>" pagination token shape
var rankTokenRe = regexp.MustCompile(
	`^\d+_[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func ValidateRankToken(token string) error {
	if !rankTokenRe.MatchString(token) {
		return errors.NewValidation("rank_token", "malformed pagination token")
	}
	return nil
}
