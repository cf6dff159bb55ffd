package guard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/guardifyhq/guardify/internal/platform"
	"github.com/guardifyhq/guardify/internal/structs"
)

// Authorizer re-resolves a user's exemption from a guard at fire time.
type Authorizer interface {
	IsExempt(ctx context.Context, chatID, userID int64, authType structs.AuthType) (bool, error)
}

// Action is one deferred re-check-and-delete unit of work, created after a
// guarded event was warned about (or would have been, had the warning not
// been suppressed).
type Action struct {
	Target    structs.MessageRef
	Warning   structs.MessageRef // zero when the warning was suppressed
	ChatID    int64
	UserID    int64
	AuthType  structs.AuthType
	CanDelete bool // bot's delete right captured at schedule time
	Delay     time.Duration
}

// Scheduler runs delayed actions as detached goroutines. Callers never join
// an action; each one carries its own error isolation and resolves on its
// own. Authorization is re-validated when the timer fires, not at schedule
// time, so a grant made during the delay window spares the target message.
type Scheduler struct {
	client platform.Client
	authz  Authorizer
	clock  Clock
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewScheduler(client platform.Client, authz Authorizer, clock Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = SystemClock
	}
	return &Scheduler{
		client: client,
		authz:  authz,
		clock:  clock,
		logger: logger,
	}
}

// Schedule queues the action. A non-positive delay means the guard is off;
// nothing is scheduled.
func (s *Scheduler) Schedule(action Action) {
	if action.Delay <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Delayed action panicked", "chatID", action.ChatID, "panic", r)
			}
		}()
		<-s.clock.After(action.Delay)
		s.resolve(action)
	}()
}

func (s *Scheduler) resolve(action Action) {
	ctx := context.Background()

	exempt, err := s.authz.IsExempt(ctx, action.ChatID, action.UserID, action.AuthType)
	if err != nil {
		// One action aborts; the pipeline never sees this.
		s.logger.Warn("Delayed action recheck failed",
			"chatID", action.ChatID, "userID", action.UserID, "authType", action.AuthType, "error", err)
		return
	}

	if !exempt && action.CanDelete {
		if err := s.client.DeleteMessage(ctx, action.Target); err != nil {
			s.logger.Warn("Failed to delete guarded message",
				"chatID", action.ChatID, "messageID", action.Target.MessageID, "error", err)
		}
	}

	// The warning is the bot's own message; cleaning it up is attempted
	// even when the target could not be touched.
	if !action.Warning.Zero() {
		if err := s.client.DeleteMessage(ctx, action.Warning); err != nil {
			s.logger.Warn("Failed to delete warning message",
				"chatID", action.ChatID, "messageID", action.Warning.MessageID, "error", err)
		}
	}
}

// Shutdown waits for in-flight actions to finish, bounded by ctx.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
