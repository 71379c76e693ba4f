package startup

import (
	"context"
	"os"
	"time"

	"github.com/chatroom/internal/logger"
	redisstorage "github.com/chatroom/internal/storage/redis"
)

// ConnectRedisWithRetry подключается к Redis (отзыв токенов, лимит входа) с повторами.
func ConnectRedisWithRetry(redisURL string, maxWait time.Duration, logPrefix string) *redisstorage.Client {
	deadline := time.Now().Add(maxWait)
	backoff := 2 * time.Second
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := redisstorage.New(ctx, redisURL)
		cancel()
		if err == nil {
			return client
		}
		if time.Now().After(deadline) {
			logger.Errorf("%sredis (gave up after %v): %v", logPrefix, maxWait, err)
			os.Exit(1)
		}
		logger.Errorf("%sredis connect failed, retry in %v: %v", logPrefix, backoff, err)
		time.Sleep(backoff)
		backoff = nextBackoff(backoff)
	}
}
