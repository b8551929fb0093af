package validator_test

import (
	"errors"
	"testing"

	"github.com/marcodd23/go-micro-dbcmd/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type retrySettings struct {
	RetryCount int    `validate:"gte=0"`
	Isolation  string `validate:"omitempty,oneof=read-committed serializable"`
}

func TestValidateStruct_Valid(t *testing.T) {
	err := validator.Validate(retrySettings{RetryCount: 3, Isolation: "serializable"})
	assert.NoError(t, err)
}

func TestValidateStruct_Invalid(t *testing.T) {
	err := validator.Validate(retrySettings{RetryCount: -1, Isolation: "chaos"})
	require.Error(t, err)

	var validationErr *validator.ValidationError
	require.True(t, errors.As(err, &validationErr))

	details := validationErr.GetErrorsDetails()
	require.Len(t, details, 2)
	assert.Equal(t, "retrySettings.RetryCount", details[0].FailedField)
	assert.Equal(t, "gte", details[0].Tag)
	assert.Equal(t, "retrySettings.Isolation", details[1].FailedField)
	assert.Equal(t, "oneof", details[1].Tag)
	assert.Contains(t, err.Error(), "failedField")
}
