package notify

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/chainreactor/quest-relayer/internal/state"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultDuration       = 5 * time.Second
	ConfirmedMessage      = "Multi-chain rewards triggered! Check your wallet."
	notificationSubsystem = "notify"
)

type Notification struct {
	Visible   bool      `json:"visible"`
	Message   string    `json:"message,omitempty"`
	TxHash    string    `json:"txHash,omitempty"`
	ShownAt   time.Time `json:"shownAt,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// Scheduler shows one success notification at a time and clears it after a
// fixed duration. A confirm while visible restarts the countdown.
type Scheduler struct {
	clock    clock.Clock
	duration time.Duration
	eventBus *state.EventBus
	logger   *log.Entry

	mu         sync.Mutex
	current    Notification
	timer      *clock.Timer
	generation uint64
	closed     bool
}

func NewScheduler(clk clock.Clock, duration time.Duration, eventBus *state.EventBus) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Scheduler{
		clock:    clk,
		duration: duration,
		eventBus: eventBus,
		logger:   log.WithFields(log.Fields{"module": notificationSubsystem}),
	}
}

func (s *Scheduler) OnConfirmed(txHash string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.generation++
	gen := s.generation
	now := s.clock.Now()
	s.current = Notification{
		Visible:   true,
		Message:   ConfirmedMessage,
		TxHash:    txHash,
		ShownAt:   now,
		ExpiresAt: now.Add(s.duration),
	}
	s.timer = s.clock.AfterFunc(s.duration, func() { s.clear(gen) })
	shown := s.current
	s.mu.Unlock()

	s.logger.WithField("txHash", txHash).Debug("Notification shown")
	s.eventBus.Publish(state.NotificationShown, shown)
}

// clear only applies to the generation that scheduled it, so a timer that
// fired just before a restart cannot hide the newer notification.
func (s *Scheduler) clear(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.generation || !s.current.Visible {
		s.mu.Unlock()
		return
	}
	cleared := s.current
	s.current = Notification{}
	s.timer = nil
	s.mu.Unlock()

	s.logger.WithField("txHash", cleared.TxHash).Debug("Notification cleared")
	s.eventBus.Publish(state.NotificationCleared, cleared)
}

func (s *Scheduler) Current() Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Close cancels any pending clear. Nothing fires after Close returns.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.current = Notification{}
}
