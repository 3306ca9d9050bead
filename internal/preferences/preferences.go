// Package preferences stores the user's display and response preferences.
package preferences

import (
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/togpt/togpt/internal/i18n"
)

const (
	FontSmall  = "small"
	FontMedium = "medium"
	FontLarge  = "large"

	SpeedFast     = "fast"
	SpeedBalanced = "balanced"
	SpeedThorough = "thorough"

	LanguageAuto = "auto"
)

var (
	fontSizes = []string{FontSmall, FontMedium, FontLarge}
	speeds    = []string{SpeedFast, SpeedBalanced, SpeedThorough}
)

type Preferences struct {
	FontSize      string `json:"fontSize" validate:"font_size"`
	ResponseSpeed string `json:"responseSpeed" validate:"response_speed"`
	Language      string `json:"language" validate:"max=32"`
}

// Default returns the preferences used before the user changes anything.
func Default() Preferences {
	return Preferences{
		FontSize:      FontMedium,
		ResponseSpeed: SpeedBalanced,
		Language:      LanguageAuto,
	}
}

// Partial is an update where nil fields are left unchanged.
type Partial struct {
	FontSize      *string `json:"fontSize,omitempty" validate:"omitempty,font_size"`
	ResponseSpeed *string `json:"responseSpeed,omitempty" validate:"omitempty,response_speed"`
	Language      *string `json:"language,omitempty" validate:"omitempty,max=32"`
}

func (p Partial) apply(to Preferences) Preferences {
	if p.FontSize != nil {
		to.FontSize = *p.FontSize
	}
	if p.ResponseSpeed != nil {
		to.ResponseSpeed = *p.ResponseSpeed
	}
	if p.Language != nil {
		to.Language = *p.Language
	}
	return to
}

// ValidationError reports a rejected preference value with a user-facing
// message.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("font_size", validateFontSize)
	v.RegisterValidation("response_speed", validateResponseSpeed)
	return v
}

func validateFontSize(fl validator.FieldLevel) bool {
	return slices.Contains(fontSizes, fl.Field().String())
}

func validateResponseSpeed(fl validator.FieldLevel) bool {
	return slices.Contains(speeds, fl.Field().String())
}

// toValidationError converts the first validator failure into a localized
// ValidationError.
func toValidationError(err error, language string) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrors) == 0 {
		return err
	}
	e := validationErrors[0]
	var msg string
	switch e.Field() {
	case "FontSize":
		msg = i18n.T(language, i18n.InvalidFontSize)
	case "ResponseSpeed":
		msg = i18n.T(language, i18n.InvalidSpeed)
	default:
		msg = fmt.Sprintf("invalid %s: %v", e.Field(), e.Value())
	}
	return &ValidationError{Field: e.Field(), Value: e.Value(), Message: msg}
}
