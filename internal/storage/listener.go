package storage

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/user/siteaudit/internal/domain"
)

const notifyChannel = "crawl_jobs_events"

// Listen subscribes to job change notifications and delivers them on the
// returned channel until ctx is cancelled. A dropped connection ends the
// stream; the controller's poll backstop covers the gap until restart.
func (s *PostgresStore) Listen(ctx context.Context, logger *zap.Logger) (<-chan domain.JobNotification, error) {
	conn, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, err
	}

	out := make(chan domain.JobNotification, 16)
	go func() {
		defer close(out)
		defer conn.Release()
		for {
			notification, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("job notification stream ended", zap.Error(err))
				}
				return
			}
			var n domain.JobNotification
			if err := json.Unmarshal([]byte(notification.Payload), &n); err != nil {
				logger.Warn("malformed job notification",
					zap.String("payload", notification.Payload), zap.Error(err))
				continue
			}
			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
