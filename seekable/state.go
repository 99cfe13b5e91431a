package seekable

import (
	"sync"
	"time"

	supervisor "github.com/demo-kratia/druid"
)

// maxRecentErrors bounds the exception history surfaced in reports.
const maxRecentErrors = 10

// defaultUnhealthyThreshold is how many consecutive failed ticks flip
// the health flag.
const defaultUnhealthyThreshold = 3

// stateManager tracks the supervisor's lifecycle state, its detailed
// activity, and a bounded history of tick failures. Health derives from
// consecutive failures, so one transient stream hiccup does not mark
// the supervisor unhealthy.
type stateManager struct {
	mu sync.Mutex

	basic    supervisor.BasicState
	detailed supervisor.DetailedState

	recentErrors        []supervisor.ExceptionEvent
	consecutiveFailures int
	unhealthyThreshold  int
}

func newStateManager(threshold int) *stateManager {
	if threshold <= 0 {
		threshold = defaultUnhealthyThreshold
	}
	return &stateManager{
		basic:              supervisor.StateStarting,
		detailed:           supervisor.DetailConnectingToStream,
		unhealthyThreshold: threshold,
	}
}

func (s *stateManager) setState(basic supervisor.BasicState, detailed supervisor.DetailedState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.basic = basic
	s.detailed = detailed
}

func (s *stateManager) setDetailed(detailed supervisor.DetailedState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detailed = detailed
}

func (s *stateManager) state() (supervisor.BasicState, supervisor.DetailedState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.basic, s.detailed
}

// recordException appends one tick failure, evicting the oldest entry
// past the cap, and bumps the consecutive-failure count.
func (s *stateManager) recordException(class, message string, streamRelated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recentErrors = append(s.recentErrors, supervisor.ExceptionEvent{
		Timestamp:      time.Now(),
		ExceptionClass: class,
		Message:        message,
		StreamRelated:  streamRelated,
	})
	if len(s.recentErrors) > maxRecentErrors {
		s.recentErrors = s.recentErrors[len(s.recentErrors)-maxRecentErrors:]
	}
	s.consecutiveFailures++

	if s.consecutiveFailures >= s.unhealthyThreshold {
		if streamRelated {
			s.detailed = supervisor.DetailUnhealthyStream
		} else {
			s.detailed = supervisor.DetailUnhealthyTasks
		}
	}
}

// markTickSuccess resets the consecutive-failure count.
func (s *stateManager) markTickSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveFailures = 0
}

func (s *stateManager) healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consecutiveFailures < s.unhealthyThreshold
}

// errorHistory returns a copy of the recorded exceptions, oldest first.
func (s *stateManager) errorHistory() []supervisor.ExceptionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]supervisor.ExceptionEvent, len(s.recentErrors))
	copy(out, s.recentErrors)
	return out
}
