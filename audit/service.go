package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sketchmon/arena/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Actions recorded by the server.
const (
	ActionMonsterCreated = "monster_created"
	ActionBattleStarted  = "battle_started"
	ActionTurnResolved   = "turn_resolved"
	ActionBattleEnded    = "battle_ended"
)

// Entry is one player action. Request and Response are stored as JSON.
type Entry struct {
	TraceID    string
	AccountID  *int64
	BattleID   *int64
	MonsterID  *int64
	Action     string
	Request    interface{}
	Response   interface{}
	Error      string
	IP         string
	DurationMs int
}

// Logger is what callers need from the audit service.
type Logger interface {
	Log(entry Entry)
}

// Options tune the write-behind queue. Zero fields take the defaults.
type Options struct {
	QueueSize     int           // default 1024
	BatchSize     int           // default 100
	FlushInterval time.Duration // default 2s
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 1024
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 2 * time.Second
	}
	return o
}

// Service writes audit rows behind the request path. Log never blocks: when
// the queue is full the entry is dropped with a warning.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
	opts   Options

	mu     sync.RWMutex
	queue  chan *model.AuditLog
	closed bool
	done   chan struct{}
}

// New starts a Service with default Options.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	return NewWithOptions(db, logger, Options{})
}

func NewWithOptions(db *gorm.DB, logger *zap.Logger, opts Options) *Service {
	opts = opts.withDefaults()
	s := &Service{
		db:     db,
		logger: logger,
		opts:   opts,
		queue:  make(chan *model.AuditLog, opts.QueueSize),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func toJSON(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

func (s *Service) Log(e Entry) {
	row := &model.AuditLog{
		TraceID:    e.TraceID,
		AccountID:  e.AccountID,
		BattleID:   e.BattleID,
		MonsterID:  e.MonsterID,
		Action:     e.Action,
		Request:    toJSON(e.Request),
		Response:   toJSON(e.Response),
		Error:      e.Error,
		IP:         e.IP,
		DurationMs: e.DurationMs,
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Warn("audit entry after shutdown", zap.String("action", e.Action))
		return
	}
	select {
	case s.queue <- row:
	default:
		s.logger.Warn("audit queue full, dropping entry", zap.String("action", e.Action))
	}
}

// Stop closes the queue and waits for the pending rows to be written, or
// for ctx to end. It is safe to call more than once.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) run() {
	defer close(s.done)
	tick := time.NewTicker(s.opts.FlushInterval)
	defer tick.Stop()

	pending := make([]*model.AuditLog, 0, s.opts.BatchSize)
	write := func() {
		if len(pending) == 0 {
			return
		}
		if err := s.db.CreateInBatches(pending, s.opts.BatchSize).Error; err != nil {
			s.logger.Error("audit batch write failed", zap.Int("entries", len(pending)), zap.Error(err))
		}
		pending = pending[:0]
	}

	for {
		select {
		case row, ok := <-s.queue:
			if !ok {
				write()
				return
			}
			pending = append(pending, row)
			if len(pending) == s.opts.BatchSize {
				write()
			}
		case <-tick.C:
			write()
		}
	}
}
