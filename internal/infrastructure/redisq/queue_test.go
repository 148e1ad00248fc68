package redisq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextBackoffDoublesPerAttempt(t *testing.T) {
	assert.Equal(t, 1000*time.Millisecond, NextBackoff(1000, 1))
	assert.Equal(t, 2000*time.Millisecond, NextBackoff(1000, 2))
	assert.Equal(t, 4000*time.Millisecond, NextBackoff(1000, 3))
	assert.Equal(t, 8000*time.Millisecond, NextBackoff(1000, 4))
}

func TestNextBackoffCustomBase(t *testing.T) {
	assert.Equal(t, 250*time.Millisecond, NextBackoff(250, 1))
	assert.Equal(t, 500*time.Millisecond, NextBackoff(250, 2))
}

func TestKeyLayout(t *testing.T) {
	assert.Equal(t, "jobs:offline-push:ready", readyKey("offline-push"))
	assert.Equal(t, "jobs:offline-push:delayed", delayedKey("offline-push"))
	assert.Equal(t, "jobs:offline-push:dead", deadKey("offline-push"))
	assert.Equal(t, "offline:AGENT:agent-1", offlineKey("AGENT:agent-1"))
	assert.Equal(t, "workers:api-1", workerKey("api-1"))
}
