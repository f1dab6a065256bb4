package depoterrors

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/openteller/depot/internal/depot/model"
)

func TestIsNotFound(t *testing.T) {
	err := &ErrNotFound{Type: "dataset", Value: "deposits"}
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(errors.Wrap(err, "loading configuration")))
	assert.False(t, IsNotFound(errors.New("boom")))
	assert.False(t, IsNotFound(nil))
}

func TestErrNotFoundMessage(t *testing.T) {
	assert.Equal(t,
		`resource "deposits" of type "dataset" does not exist`,
		(&ErrNotFound{Type: "dataset", Value: "deposits"}).Error())
	assert.Equal(t,
		`resource "deposits" does not exist`,
		(&ErrNotFound{Value: "deposits"}).Error())
}

func TestErrValidationFailedMessage(t *testing.T) {
	err := &ErrValidationFailed{Errors: []model.ValidationError{
		{Row: 43, Column: "client_id", Value: "  ", Message: "required column is empty"},
		{Row: 44, Column: "amount", Value: "x", Message: "required column is empty"},
	}}
	assert.Equal(t,
		`validation failed with 2 error(s); first: row 43 column "client_id": required column is empty`,
		err.Error())
}

func TestErrRateLimitedMessage(t *testing.T) {
	err := &ErrRateLimited{RetryAfterSeconds: 17}
	assert.Equal(t, "too many requests; retry after 17 seconds", err.Error())
}
