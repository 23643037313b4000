package core

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"climarisk/internal/types"
)

// Validator wraps go-playground/validator for request body validation.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator with the standard tag set.
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// ValidateStruct validates dst against its struct tags, translating failures
// into a *types.AppError with per-field details.
func (v *Validator) ValidateStruct(dst any) error {
	err := v.validate.Struct(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(map[string]any, len(verrs))
		for _, fe := range verrs {
			details[fe.Field()] = "failed " + fe.Tag() + " validation"
		}
		return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
			"request validation failed", err, details)
	}
	return types.NewAppError(types.ErrCodeValidationInvalidJSON, "invalid request body", err)
}
