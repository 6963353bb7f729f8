package validate

import (
	"errors"
	"testing"

	"github.com/ariefcatur/go-cake-orders/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type line struct {
	Price float64 `json:"price" validate:"gt=0"`
}

type sample struct {
	Name  string `json:"name" validate:"required,min=2"`
	Phone string `json:"phone" validate:"required,kephone"`
	Lines []line `json:"lines" validate:"required,min=1,dive"`
}

func TestIsKenyanPhone(t *testing.T) {
	for _, ok := range []string{"0712345678", "0112345678", "254712345678", "+254712345678", "712345678"} {
		assert.True(t, IsKenyanPhone(ok), ok)
	}
	for _, bad := range []string{"", "0812345678", "07123", "+1555123456", "25471234567x"} {
		assert.False(t, IsKenyanPhone(bad), bad)
	}
}

func TestStructFieldErrors(t *testing.T) {
	err := Struct(sample{Name: "A", Phone: "123", Lines: []line{{Price: 0}}})
	require.Error(t, err)

	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, apperr.KindValidation, ae.Kind)

	fields := map[string]string{}
	for _, f := range ae.Fields {
		fields[f.Field] = f.Message
	}
	assert.Equal(t, "must be at least 2 characters", fields["name"])
	assert.Equal(t, "must be a valid Kenyan phone number", fields["phone"])
	assert.Equal(t, "must be greater than 0", fields["lines[0].price"])
}

func TestStructEmptySlice(t *testing.T) {
	err := Struct(sample{Name: "Jane", Phone: "0712345678"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestStructValid(t *testing.T) {
	assert.NoError(t, Struct(sample{Name: "Jane", Phone: "0712345678", Lines: []line{{Price: 10}}}))
}

func TestVar(t *testing.T) {
	assert.NoError(t, Var("status", "read", "oneof=new read responded"))
	err := Var("status", "archived", "oneof=new read responded")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
