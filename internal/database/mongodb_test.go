package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectMongoWithRetryMakesOneAttemptAtLeast(t *testing.T) {
	for _, attempts := range []int{0, -3} {
		_, err := ConnectMongoWithRetry(context.Background(), "notmongo://db", time.Second, attempts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "after 1 attempts")
		assert.Contains(t, err.Error(), "mongo connect")
		assert.NotContains(t, err.Error(), "%!w")
	}
}
