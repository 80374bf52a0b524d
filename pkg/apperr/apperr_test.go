package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindNetworkFailure, "send message", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "[network_failure] send message: connection refused", err.Error())
	assert.True(t, IsKind(err, KindNetworkFailure))
	assert.False(t, IsKind(err, KindAuthMissing))
}

func TestKindOfThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("open session: %w", New(KindAuthMissing, "no credential"))

	assert.Equal(t, KindAuthMissing, KindOf(err))
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
}
