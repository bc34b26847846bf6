package treadmill

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/lowaak/treadmill-hud/treadmill-hud-app/internal/workout"
)

// Session bridges the workout engine and the physical treadmill: it
// subscribes to engine events and turns target-bearing ones into controller
// commands. The engine never touches the machine directly.
type Session struct {
	engine     *workout.Engine
	controller Controller
	logger     *log.Logger

	started     atomic.Bool
	unsubscribe func()
}

// NewSession creates a Session
func NewSession(engine *workout.Engine, controller Controller, logger *log.Logger) *Session {
	if engine == nil {
		panic("Session: engine cannot be nil")
	}
	if controller == nil {
		panic("Session: controller cannot be nil")
	}
	if logger == nil {
		panic("Session: logger cannot be nil")
	}
	return &Session{
		engine:     engine,
		controller: controller,
		logger:     logger,
	}
}

// Begin spins up the belt, waits for it to report running and starts the
// engine. A second call while the session is active is a no-op. When the
// belt is already moving (restore after a crash, user pre-started it) the
// spin-up wait is skipped.
func (s *Session) Begin(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		s.logger.Printf("Session: begin ignored - session already active")
		return nil
	}

	if s.controller.RunState() != RunStateRunning {
		if err := s.controller.Start(); err != nil {
			s.started.Store(false)
			return err
		}
		if err := WaitForBeltRunning(ctx, s.controller); err != nil {
			s.started.Store(false)
			return err
		}
	} else {
		s.logger.Printf("Session: belt already running, skipping spin-up")
	}

	s.unsubscribe = s.engine.SubscribeEventsFunc(s.handleEvent)
	if err := s.engine.Start(); err != nil {
		s.unsubscribe()
		s.unsubscribe = nil
		s.started.Store(false)
		return err
	}
	return nil
}

// BeginResumed attaches to an engine already holding a restored paused
// workout: the belt is started and the engine resumed instead of started.
func (s *Session) BeginResumed(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		s.logger.Printf("Session: begin ignored - session already active")
		return nil
	}

	if s.controller.RunState() != RunStateRunning {
		if err := s.controller.Start(); err != nil {
			s.started.Store(false)
			return err
		}
		if err := WaitForBeltRunning(ctx, s.controller); err != nil {
			s.started.Store(false)
			return err
		}
	}

	s.unsubscribe = s.engine.SubscribeEventsFunc(s.handleEvent)
	s.engine.Resume()
	return nil
}

// Active reports whether a session currently owns the belt.
func (s *Session) Active() bool {
	return s.started.Load()
}

// End stops the engine, detaches from its events and halts the belt.
func (s *Session) End() {
	if !s.started.CompareAndSwap(true, false) {
		return
	}
	s.engine.Stop()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if err := s.controller.Stop(); err != nil {
		s.logger.Printf("Session: error stopping belt: %v", err)
	}
}

// handleEvent applies target-bearing engine events to the treadmill.
func (s *Session) handleEvent(ev workout.Event) {
	switch e := ev.(type) {
	case workout.StepStarted:
		if e.PaceKph > 0 {
			s.setSpeed(e.PaceKph)
		}
		s.setIncline(e.InclinePct)
	case workout.WorkoutResumed:
		if e.PaceKph > 0 {
			s.setSpeed(e.PaceKph)
		}
		s.setIncline(e.InclinePct)
	case workout.SpeedAdjusted:
		s.setSpeed(e.NewSpeedKph)
	case workout.InclineAdjusted:
		s.setIncline(e.NewInclinePct)
	case workout.EffortAdjusted:
		if e.PaceKph > 0 {
			s.setSpeed(e.PaceKph)
		}
		s.setIncline(e.InclinePct)
	case workout.WorkoutCompleted:
		// End() owns the belt stop; nothing to command here
	case workout.StepCompleted, workout.WorkoutPlanFinished:
	case workout.HrOutOfRange, workout.HrBackInRange, workout.HrEarlyEndTriggered:
	case workout.Warning:
		s.logger.Printf("Session: engine warning: %s", e.Message)
	case workout.Error:
		s.logger.Printf("Session: engine error: %s", e.Message)
	}
}

func (s *Session) setSpeed(kph float64) {
	if err := s.controller.SetTargetSpeed(kph); err != nil {
		s.logger.Printf("Session: failed to set belt speed %.1f kph: %v", kph, err)
	}
}

func (s *Session) setIncline(pct float64) {
	if err := s.controller.SetTargetIncline(pct); err != nil {
		s.logger.Printf("Session: failed to set incline %.1f%%: %v", pct, err)
	}
}
