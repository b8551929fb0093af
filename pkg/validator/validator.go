//nolint:gochecknoglobals
package validator

import (
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Validator - Validator type.
type Validator struct {
	validate *validator.Validate
}

var (
	validatorInstance *Validator
	validatorOnce     sync.Once
)

// NewValidator - returns the shared Validator, creating it on first use.
func NewValidator() *Validator {
	validatorOnce.Do(func() {
		validatorInstance = &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
	})

	return validatorInstance
}

// ValidateStruct - apply the `validate` tags of str and collect the failures.
// It returns nil when str is valid, otherwise a *ValidationError.
func (v *Validator) ValidateStruct(str interface{}) error {
	err := v.validate.Struct(str)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	details := make([]*ValidationErrorResponse, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details = append(details, &ValidationErrorResponse{
			FailedField: fieldErr.StructNamespace(),
			Tag:         fieldErr.Tag(),
			Value:       fieldErr.Param(),
		})
	}

	return NewValidationError(details)
}

// Validate - shortcut for NewValidator().ValidateStruct(str).
func Validate(str interface{}) error {
	return NewValidator().ValidateStruct(str)
}
