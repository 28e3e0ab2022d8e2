package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetIDPrefersEnvironment(t *testing.T) {
	t.Setenv("KHATABILL_INSTANCE_ID", "publisher-7")
	assert.Equal(t, "publisher-7", GetID())
}

func TestGetIDFallsBackToHost(t *testing.T) {
	t.Setenv("KHATABILL_INSTANCE_ID", "")
	assert.NotEmpty(t, GetID())
}
