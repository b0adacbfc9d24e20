package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreate_RejectsForbiddenNameBeforeQuerying(t *testing.T) {
	// No pool: a forbidden name must be rejected before any database work.
	users := NewUsers(nil)

	tests := []string{"geek", "EKaterina", "sn ek"}
	for _, name := range tests {
		_, err := users.Create(context.Background(), "u1", name)
		assert.ErrorIs(t, err, ErrForbiddenName, name)
	}
}

func TestCreate_RejectsInvalidNameBeforeQuerying(t *testing.T) {
	users := NewUsers(nil)

	_, err := users.Create(context.Background(), "u1", "")
	assert.ErrorIs(t, err, ErrForbiddenName)

	_, err = users.Create(context.Background(), "u1", `<script>`)
	assert.ErrorIs(t, err, ErrForbiddenName)
}
