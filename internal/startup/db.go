package startup

import (
	"context"
	"os"
	"time"

	"github.com/chatroom/internal/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

const maxBackoff = 30 * time.Second

// ConnectDBWithRetry подключается к Postgres с повторами; процесс завершается только после maxWait.
func ConnectDBWithRetry(poolCfg *pgxpool.Config, maxWait time.Duration, logPrefix string) *pgxpool.Pool {
	deadline := time.Now().Add(maxWait)
	backoff := 2 * time.Second
	for {
		pool, err := tryConnectDB(poolCfg)
		if err == nil {
			return pool
		}
		if time.Now().After(deadline) {
			logger.Errorf("%sdb connect (gave up after %v): %v", logPrefix, maxWait, err)
			os.Exit(1)
		}
		logger.Errorf("%sdb connect failed, retry in %v: %v", logPrefix, backoff, err)
		time.Sleep(backoff)
		backoff = nextBackoff(backoff)
	}
}

func tryConnectDB(poolCfg *pgxpool.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	cancel()
	if err != nil {
		return nil, err
	}
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func nextBackoff(d time.Duration) time.Duration {
	if d < maxBackoff {
		d *= 2
	}
	return min(d, maxBackoff)
}
