package core

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"balanceguard/internal/types"
)

// Validator wraps struct validation and converts failures into the
// VALIDATION_FAILED envelope shape with per-field details.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(types.ErrCodeInternal, "validation could not run", err)
	}

	fields := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return types.NewAppErrorWithDetails(types.ErrCodeValidationFailed,
		"Request validation failed.", err, map[string]any{"fields": fields})
}
