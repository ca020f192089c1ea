package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type credentials struct {
	Username string `json:"username" validate:"required,min=3"`
	Action   string `json:"action" validate:"oneof=approve reject"`
}

func TestValidate(t *testing.T) {
	v := NewValidator()

	errs, ok := v.Validate(credentials{Username: "bob", Action: "approve"})
	assert.True(t, ok)
	assert.Empty(t, errs)

	errs, ok = v.Validate(credentials{Username: "b", Action: "maybe"})
	require.False(t, ok)
	require.Len(t, errs, 2)
	assert.Equal(t, "username", errs[0].Field, "field names come from json tags")
	assert.Equal(t, "MIN", errs[0].Code)
	assert.Equal(t, "action must be one of: approve reject", errs[1].Message)
}
