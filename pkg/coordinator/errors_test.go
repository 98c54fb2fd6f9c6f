package coordinator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdateFailed(t *testing.T) {
	cause := errors.New("i/o timeout")
	err := UpdateFailed(cause, "%s (%s) timed out waiting for a response: %v", "Hall", "10.0.0.9", cause)

	assert.Equal(t, "Hall (10.0.0.9) timed out waiting for a response: i/o timeout", err.Error())
	assert.ErrorIs(t, err, cause)
}
