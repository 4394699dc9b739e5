package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Task types
const (
	TypeSessionPurge = "session:purge"
	TypeDraftExpire  = "draft:expire"
)

// DraftExpirySpec is the cron spec of the periodic draft sweep
const DraftExpirySpec = "@every 1h"

// SessionPurger drops idle form sessions. A positive duration means the session is
// still in use and should be checked again after that long.
type SessionPurger interface {
	Expire(ctx context.Context, sessionID string) (time.Duration, error)
}

// DraftExpirer deletes drafts whose TTL has passed
type DraftExpirer interface {
	ExpireBefore(ctx context.Context, t time.Time) (int64, error)
}

// Publisher broadcasts session lifecycle events
type Publisher interface {
	PublishSession(sessionID string, event map[string]interface{}) error
}

type JobServer struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	client    *asynq.Client
	sessions  SessionPurger
	drafts    DraftExpirer
	bus       Publisher
	log       *zap.Logger

	requeue func(sessionID string, after time.Duration) error
	now     func() time.Time
}

// NewJobServer builds the worker. drafts may be nil when drafts are not kept in a
// store that needs sweeping; the periodic expiry is then not registered.
func NewJobServer(redisAddr string, sessions SessionPurger, drafts DraftExpirer, log *zap.Logger) (*JobServer, *asynq.Client) {
	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	client := asynq.NewClient(redisOpt)

	js := &JobServer{
		server:   server,
		client:   client,
		sessions: sessions,
		drafts:   drafts,
		log:      log,
		now:      time.Now,
	}
	js.requeue = func(id string, after time.Duration) error {
		return ScheduleSessionPurge(client, id, after)
	}
	if drafts != nil {
		js.scheduler = asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC})
	}
	return js, client
}

// SetPublisher sets the bus used to announce expired sessions
func (js *JobServer) SetPublisher(bus Publisher) {
	js.bus = bus
}

func (js *JobServer) Start() error {
	mux := asynq.NewServeMux()

	mux.HandleFunc(TypeSessionPurge, js.handleSessionPurge)
	mux.HandleFunc(TypeDraftExpire, js.handleDraftExpire)

	if js.scheduler != nil {
		if _, err := js.scheduler.Register(DraftExpirySpec, asynq.NewTask(TypeDraftExpire, nil), asynq.Queue("low")); err != nil {
			return fmt.Errorf("failed to register draft expiry: %w", err)
		}
		if err := js.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	return js.server.Start(mux)
}

func (js *JobServer) Stop() {
	if js.scheduler != nil {
		js.scheduler.Shutdown()
	}
	js.server.Shutdown()
	js.client.Close()
}

// Job handlers

func (js *JobServer) handleSessionPurge(ctx context.Context, t *asynq.Task) error {
	sessionID := string(t.Payload())
	if sessionID == "" {
		return fmt.Errorf("session purge without session id: %w", asynq.SkipRetry)
	}

	remaining, err := js.sessions.Expire(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to expire session: %w", err)
	}

	if remaining > 0 {
		if err := js.requeue(sessionID, remaining); err != nil {
			return fmt.Errorf("failed to reschedule purge: %w", err)
		}
		js.log.Debug("Session still active", zap.String("session_id", sessionID), zap.Duration("recheck_in", remaining))
		return nil
	}

	if js.bus != nil {
		_ = js.bus.PublishSession(sessionID, map[string]interface{}{
			"type":      "session.expired",
			"sessionId": sessionID,
		})
	}

	js.log.Info("Session purged", zap.String("session_id", sessionID))
	return nil
}

func (js *JobServer) handleDraftExpire(ctx context.Context, t *asynq.Task) error {
	if js.drafts == nil {
		return nil
	}
	n, err := js.drafts.ExpireBefore(ctx, js.now())
	if err != nil {
		return fmt.Errorf("failed to expire drafts: %w", err)
	}
	if n > 0 {
		js.log.Info("Expired drafts removed", zap.Int64("count", n))
	}
	return nil
}

// Schedule jobs

// ScheduleSessionPurge checks the session again once after has elapsed.
func ScheduleSessionPurge(client *asynq.Client, sessionID string, after time.Duration) error {
	task := asynq.NewTask(TypeSessionPurge, []byte(sessionID))
	_, err := client.Enqueue(task, asynq.ProcessIn(after), asynq.Queue("low"), asynq.MaxRetry(3))
	return err
}
