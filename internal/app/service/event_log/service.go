// Package event_log persists an audit trail of webhook deliveries. Writes
// happen off the request's critical path and never feed the idempotency
// decision.
package event_log

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ship-kit/billing/internal/models"
	"github.com/ship-kit/billing/pkg/logctx"
	"github.com/ship-kit/billing/pkg/tool"
)

type Service struct {
	db    *gorm.DB
	log   *zap.SugaredLogger
	queue chan *models.WebhookEventLog
	done  chan struct{}
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service {
	s := &Service{
		db:    db,
		log:   log,
		queue: make(chan *models.WebhookEventLog, 256),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

// Save enqueues a snapshot of entry for background persistence. The snapshot
// is taken synchronously, so callers may keep mutating entry afterwards; a
// later Save of the same entry upserts the same row, and the single writer
// applies saves in call order. Nil input is ignored.
func (s *Service) Save(ctx context.Context, entry *models.WebhookEventLog) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = tool.GenerateUUIDV7()
	}
	snapshot := *entry
	select {
	case s.queue <- &snapshot:
	default:
		logctx.FromCtx(ctx, s.log).Errorw("webhook event log queue full, entry dropped",
			"event_id", entry.EventID, "event", entry.EventName)
	}
}

func (s *Service) run() {
	defer close(s.done)
	for entry := range s.queue {
		if err := s.db.Save(entry).Error; err != nil {
			s.log.Errorf("failed to save webhook event log: %v", err)
		}
	}
}

// Close flushes queued entries and stops the writer. Save must not be called
// after Close.
func (s *Service) Close() {
	close(s.queue)
	<-s.done
}

// Recent lists the newest audit entries, capped at limit.
func (s *Service) Recent(ctx context.Context, limit int) ([]*models.WebhookEventLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var rows []*models.WebhookEventLog
	if err := s.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
