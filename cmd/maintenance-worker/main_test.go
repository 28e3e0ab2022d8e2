package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockKeyIsScopedPerEnvironment(t *testing.T) {
	assert.Equal(t, "kb:maintenance:lock:prod", lockKey("prod"))
	assert.Equal(t, "kb:maintenance:lock:local", lockKey(""))
}
