package treadmill

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/treadmill-hud/treadmill-hud-app/internal/workout"
)

type fakeController struct {
	mu       sync.Mutex
	state    RunState
	starts   int
	stops    int
	speeds   []float64
	inclines []float64
	startErr error
}

func (c *fakeController) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts++
	if c.startErr != nil {
		return c.startErr
	}
	c.state = RunStateRunning
	return nil
}

func (c *fakeController) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	c.state = RunStateStopped
	return nil
}

func (c *fakeController) SetTargetSpeed(kph float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speeds = append(c.speeds, kph)
	return nil
}

func (c *fakeController) SetTargetIncline(pct float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inclines = append(c.inclines, pct)
	return nil
}

func (c *fakeController) RunState() RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeController) setState(s RunState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func (c *fakeController) snapshot() (starts, stops int, speeds, inclines []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts, c.stops, append([]float64(nil), c.speeds...), append([]float64(nil), c.inclines...)
}

type stubRepo struct {
	plan *workout.WorkoutPlan
}

func (r stubRepo) GetWorkout(_ context.Context, id int64) (*workout.WorkoutPlan, error) {
	if r.plan != nil && r.plan.ID == id {
		return r.plan, nil
	}
	return nil, workout.ErrWorkoutNotFound
}

func (r stubRepo) SystemWorkoutByType(_ context.Context, _ string) (*workout.WorkoutPlan, error) {
	return nil, workout.ErrWorkoutNotFound
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// newLoadedEngine returns an engine with a one-step workout loaded.
func newLoadedEngine(t *testing.T) *workout.Engine {
	t.Helper()
	repo := stubRepo{plan: &workout.WorkoutPlan{ID: 1, Name: "Tempo", Steps: []workout.Step{
		{ID: 1, Type: workout.StepRun, DurationType: workout.DurationTime, DurationSeconds: 60,
			PaceKph: 10, InclinePct: 1},
	}}}
	e := workout.NewEngine(repo, workout.DefaultEngineConfig(), testLogger())
	require.NoError(t, e.LoadWorkout(context.Background(), 1))
	return e
}

func TestWaitForBeltRunning_AlreadyRunning(t *testing.T) {
	c := &fakeController{state: RunStateRunning}
	require.NoError(t, WaitForBeltRunning(context.Background(), c))
}

func TestWaitForBeltRunning_ContextCancelled(t *testing.T) {
	c := &fakeController{state: RunStateStarting}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := WaitForBeltRunning(ctx, c)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitForBeltRunning_BeltSpinsUp(t *testing.T) {
	c := &fakeController{state: RunStateStarting}
	go func() {
		time.Sleep(150 * time.Millisecond)
		c.setState(RunStateRunning)
	}()

	require.NoError(t, WaitForBeltRunning(context.Background(), c))
}

func TestSession_Begin(t *testing.T) {
	engine := newLoadedEngine(t)
	c := &fakeController{}
	s := NewSession(engine, c, testLogger())

	require.NoError(t, s.Begin(context.Background()))
	assert.True(t, s.Active())

	starts, _, speeds, inclines := c.snapshot()
	assert.Equal(t, 1, starts)
	require.NotEmpty(t, speeds, "first step's targets applied to the belt")
	assert.Equal(t, 10.0, speeds[0])
	require.NotEmpty(t, inclines)
	assert.Equal(t, 1.0, inclines[0])
}

func TestSession_BeginTwiceIsNoOp(t *testing.T) {
	engine := newLoadedEngine(t)
	c := &fakeController{}
	s := NewSession(engine, c, testLogger())

	require.NoError(t, s.Begin(context.Background()))
	require.NoError(t, s.Begin(context.Background()))

	starts, _, _, _ := c.snapshot()
	assert.Equal(t, 1, starts)
}

func TestSession_BeginBeltStartFails(t *testing.T) {
	engine := newLoadedEngine(t)
	c := &fakeController{startErr: errors.New("belt fault")}
	s := NewSession(engine, c, testLogger())

	require.Error(t, s.Begin(context.Background()))

	// The failed attempt released the session; a retry starts over
	c.mu.Lock()
	c.startErr = nil
	c.mu.Unlock()
	require.NoError(t, s.Begin(context.Background()))
}

func TestSession_BeginSkipsSpinUpWhenBeltRunning(t *testing.T) {
	engine := newLoadedEngine(t)
	c := &fakeController{state: RunStateRunning}
	s := NewSession(engine, c, testLogger())

	require.NoError(t, s.Begin(context.Background()))
	starts, _, _, _ := c.snapshot()
	assert.Equal(t, 0, starts)
}

func TestSession_AppliesAdjustments(t *testing.T) {
	engine := newLoadedEngine(t)
	c := &fakeController{}
	s := NewSession(engine, c, testLogger())
	require.NoError(t, s.Begin(context.Background()))

	engine.AdjustEffort(10)

	_, _, speeds, _ := c.snapshot()
	require.Len(t, speeds, 2)
	assert.InDelta(t, 11.0, speeds[1], 1e-9)
}

func TestSession_End(t *testing.T) {
	engine := newLoadedEngine(t)
	c := &fakeController{}
	s := NewSession(engine, c, testLogger())
	require.NoError(t, s.Begin(context.Background()))

	s.End()
	assert.False(t, s.Active())
	_, stops, _, _ := c.snapshot()
	assert.Equal(t, 1, stops)

	// Engine completed; belt commands stop flowing
	engine.AdjustEffort(10)
	_, _, speeds, _ := c.snapshot()
	assert.Len(t, speeds, 1)

	s.End() // second end is a no-op
	_, stops, _, _ = c.snapshot()
	assert.Equal(t, 1, stops)
}

func TestSession_BeginResumed(t *testing.T) {
	engine := newLoadedEngine(t)
	require.NoError(t, engine.Start())
	engine.Pause()

	c := &fakeController{}
	s := NewSession(engine, c, testLogger())
	require.NoError(t, s.BeginResumed(context.Background()))

	starts, _, speeds, _ := c.snapshot()
	assert.Equal(t, 1, starts)
	require.NotEmpty(t, speeds, "resume re-announces the step targets")
	assert.Equal(t, 10.0, speeds[0])
}
