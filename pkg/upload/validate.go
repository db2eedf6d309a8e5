package upload

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"igclient/pkg/errors"
)

var validate = validator.New()

// Media limits the vendor enforces server-side; catching them here keeps
// bad values off the wire entirely.
const (
	maxCaptionLen = 300
	maxVideoBytes = 50 << 20
	minDuration   = 3.0
	maxDuration   = 60.0
)

// Aspect ratio windows per target surface
const (
	postMinRatio  = 4.0 / 5.0
	postMaxRatio  = 90.0 / 47.0
	storyMinRatio = 9.0 / 16.0
	storyMaxRatio = 3.0 / 4.0
)

func validateCaption(caption string) error {
	if err := validate.Var(caption, fmt.Sprintf("max=%d", maxCaptionLen)); err != nil {
		return errors.NewValidation("caption",
			fmt.Sprintf("longer than %d characters", maxCaptionLen))
	}
	return nil
}

// videoGates carries the validator-checked video constraints
type videoGates struct {
	Duration float64 `validate:"gte=3,lte=60"`
	Width    int     `validate:"gt=0"`
	Height   int     `validate:"gt=0"`
	Size     int     `validate:"gt=0,lte=52428800"`
}

func validateVideo(v Video) error {
	gates := videoGates{
		Duration: v.Duration,
		Width:    v.Width,
		Height:   v.Height,
		Size:     len(v.Data),
	}
	if err := validate.Struct(gates); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			field := verrs[0].Field()
			switch field {
			case "Duration":
				return errors.NewValidation("duration",
					fmt.Sprintf("%.1fs outside %.1f-%.1fs", v.Duration, minDuration, maxDuration))
			case "Size":
				return errors.NewValidation("video",
					fmt.Sprintf("%d bytes exceeds %d byte limit", len(v.Data), maxVideoBytes))
			default:
				return errors.NewValidation("dimensions", "width and height must be positive")
			}
		}
		return errors.NewValidation("video", err.Error())
	}

	ratio := float64(v.Width) / float64(v.Height)
	minRatio, maxRatio := postMinRatio, postMaxRatio
	if v.IsStory {
		minRatio, maxRatio = storyMinRatio, storyMaxRatio
	}
	if ratio < minRatio || ratio > maxRatio {
		return errors.NewValidation("aspect_ratio",
			fmt.Sprintf("%.4f outside %.4f-%.4f", ratio, minRatio, maxRatio))
	}

	if len(v.Thumbnail) == 0 {
		return errors.NewValidation("thumbnail", "required for video uploads")
	}
	return validateCaption(v.Caption)
}
