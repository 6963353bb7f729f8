package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("create order: %w", NotFound("order not found"))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, Is(err, KindNotFound))
	assert.False(t, Is(err, KindValidation))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindInternal))
}

func TestGatewayUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Gateway("payment failed, try again", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "gateway")
}
