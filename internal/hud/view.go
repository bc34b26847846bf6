package hud

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/lowaak/treadmill-hud/treadmill-hud-app/internal/go_func_utils"
	"github.com/lowaak/treadmill-hud/treadmill-hud-app/internal/store"
	"github.com/lowaak/treadmill-hud/treadmill-hud-app/internal/treadmill"
	"github.com/lowaak/treadmill-hud/treadmill-hud-app/internal/workout"
)

// Page names for tview.Pages
const (
	pageWorkoutSelection = "workout_selection"
	pageDashboard        = "dashboard"
)

// View is the terminal HUD: a workout selection page and the live dashboard.
// It renders engine state snapshots and appends workout events to the event
// log; all commands go through the engine and session, never the treadmill
// directly.
type View struct {
	logger  *log.Logger
	app     *tview.Application
	engine  *workout.Engine
	session *treadmill.Session
	store   *store.Store

	pages   *tview.Pages
	logView *tview.TextView

	// Workout selection page
	selectionFlex  *tview.Flex
	workoutList    *tview.List
	workoutDetails *tview.TextView
	workouts       []workout.WorkoutPlan

	// Dashboard page
	dashboardFlex *tview.Flex
	statusPanel   *tview.TextView
	stepPanel     *tview.TextView
	eventsPanel   *tview.TextView

	// Last state snapshot, for keyboard decisions
	mu        sync.Mutex
	lastState workout.ExecutionState

	cancel      context.CancelFunc
	unsubscribe []func()
}

// NewView creates a View
func NewView(engine *workout.Engine, session *treadmill.Session, st *store.Store, logger *log.Logger) *View {
	if engine == nil {
		panic("View: engine cannot be nil")
	}
	if session == nil {
		panic("View: session cannot be nil")
	}
	if st == nil {
		panic("View: store cannot be nil")
	}
	if logger == nil {
		panic("View: logger cannot be nil")
	}
	return &View{
		logger:  logger,
		app:     tview.NewApplication(),
		engine:  engine,
		session: session,
		store:   st,
	}
}

// Run builds the widgets, wires the subscriptions, and blocks until the UI
// exits.
func (v *View) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel

	v.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	v.logView.SetBorder(true).SetTitle(" Logs ")

	v.pages = tview.NewPages()
	v.initSelectionPage()
	v.initDashboardPage()
	v.pages.AddPage(pageWorkoutSelection, v.selectionFlex, true, true)
	v.pages.AddPage(pageDashboard, v.dashboardFlex, true, false)

	mainFlex := tview.NewFlex().
		AddItem(v.pages, 0, 2, true).
		AddItem(v.logView, 0, 1, false)

	v.setupKeyboardHandlers()
	v.subscribe(ctx)

	if err := v.reloadWorkoutList(ctx); err != nil {
		v.logger.Printf("View: failed to load workout list: %v", err)
	}

	v.app.SetRoot(mainFlex, true)
	v.app.SetFocus(v.workoutList)
	err := v.app.Run()

	cancel()
	for _, unsub := range v.unsubscribe {
		unsub()
	}
	return err
}

// Stop stops the UI framework.
func (v *View) Stop() {
	v.app.Stop()
}

// WriteLogLine appends a line to the log panel.
func (v *View) WriteLogLine(line string) error {
	_, err := fmt.Fprint(v.logView, line)
	return err
}

func (v *View) initSelectionPage() {
	instructions := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	instructions.SetText("[yellow]Enter[white] Start Workout  |  [yellow]R[white] Reload List  |  [yellow]Esc[white] Quit")

	v.workoutList = tview.NewList().
		ShowSecondaryText(true).
		SetSelectedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
			v.onWorkoutSelected(index)
		}).
		SetChangedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
			v.updateWorkoutDetails(index)
		})
	v.workoutList.SetBorder(true).SetTitle(" Workouts ")

	v.workoutDetails = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	v.workoutDetails.SetBorder(true).SetTitle(" Details ")
	v.updateWorkoutDetails(-1)

	listRow := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(v.workoutList, 0, 1, true).
		AddItem(v.workoutDetails, 0, 1, false)

	v.selectionFlex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(instructions, 2, 0, false).
		AddItem(listRow, 0, 1, true)
}

func (v *View) initDashboardPage() {
	v.statusPanel = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	v.statusPanel.SetBorder(true).SetTitle(" Workout ")

	v.stepPanel = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	v.stepPanel.SetBorder(true).SetTitle(" Current Step ")

	v.eventsPanel = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	v.eventsPanel.SetBorder(true).SetTitle(" Events ")

	leftColumn := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(v.statusPanel, 0, 1, true).
		AddItem(v.stepPanel, 0, 1, false)

	v.dashboardFlex = tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(leftColumn, 0, 2, true).
		AddItem(v.eventsPanel, 0, 1, false)
}

// subscribe wires the engine's state and event streams into the widgets.
// Updates arrive on engine goroutines; rendering hops onto the UI loop via
// QueueUpdateDraw.
func (v *View) subscribe(ctx context.Context) {
	stateCh := make(chan workout.ExecutionState, 16)
	v.unsubscribe = append(v.unsubscribe, v.engine.SubscribeState(stateCh))
	go_func_utils.SafeGo(v.logger, func() {
		for {
			select {
			case <-ctx.Done():
				return
			case state := <-stateCh:
				v.mu.Lock()
				v.lastState = state
				v.mu.Unlock()
				v.app.QueueUpdateDraw(func() {
					v.renderState(state)
				})
			}
		}
	})

	eventCh := make(chan workout.Event, 16)
	v.unsubscribe = append(v.unsubscribe, v.engine.SubscribeEvents(eventCh))
	go_func_utils.SafeGo(v.logger, func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				line := formatEvent(ev)
				if line == "" {
					continue
				}
				v.app.QueueUpdateDraw(func() {
					fmt.Fprintf(v.eventsPanel, "%s\n", line)
				})
			}
		}
	})
}

func (v *View) setupKeyboardHandlers() {
	v.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			v.onEscape()
			return nil
		}

		currentPage, _ := v.pages.GetFrontPage()
		if currentPage == pageWorkoutSelection {
			if event.Key() == tcell.KeyRune && (event.Rune() == 'r' || event.Rune() == 'R') {
				if err := v.reloadWorkoutList(context.Background()); err != nil {
					v.logger.Printf("View: failed to reload workout list: %v", err)
				}
				return nil
			}
			return event
		}

		// Dashboard keys
		if event.Key() == tcell.KeyRune {
			switch event.Rune() {
			case ' ':
				v.togglePause()
				return nil
			case 'x':
				v.stopWorkout()
				return nil
			case 'n':
				v.engine.SkipForward()
				return nil
			case 'b':
				v.engine.SkipBack()
				return nil
			case '+', '=':
				v.engine.AdjustEffort(+5)
				return nil
			case '-':
				v.engine.AdjustEffort(-5)
				return nil
			}
		}
		return event
	})
}

func (v *View) reloadWorkoutList(ctx context.Context) error {
	workouts, err := v.store.ListWorkouts(ctx)
	if err != nil {
		return err
	}
	v.workouts = workouts
	v.workoutList.Clear()
	for i := range workouts {
		v.workoutList.AddItem(workouts[i].Name, "", 0, nil)
	}
	if len(workouts) > 0 {
		v.updateWorkoutDetails(0)
	}
	return nil
}

func (v *View) updateWorkoutDetails(index int) {
	if v.workoutDetails == nil {
		return
	}
	if index < 0 || index >= len(v.workouts) {
		v.workoutDetails.SetText("\n  Select a workout to view details.\n\n  [gray]Press Enter to start.[white]\n")
		return
	}

	// The list view carries workouts without steps; fetch the full plan.
	plan, err := v.store.GetWorkout(context.Background(), v.workouts[index].ID)
	if err != nil {
		v.workoutDetails.SetText(fmt.Sprintf("\n  [red]Failed to load workout: %v[white]\n", err))
		return
	}
	v.workoutDetails.SetText(formatPlanDetails(plan))
}

func (v *View) onWorkoutSelected(index int) {
	if index < 0 || index >= len(v.workouts) {
		return
	}
	id := v.workouts[index].ID
	v.logger.Printf("View: starting workout %d (%s)", id, v.workouts[index].Name)

	go_func_utils.SafeGo(v.logger, func() {
		ctx := context.Background()
		if err := v.engine.LoadWorkout(ctx, id); err != nil {
			v.logger.Printf("View: load failed: %v", err)
			return
		}
		if err := v.session.Begin(ctx); err != nil {
			v.logger.Printf("View: session start failed: %v", err)
			return
		}
		v.app.QueueUpdateDraw(func() {
			v.pages.SwitchToPage(pageDashboard)
			v.eventsPanel.Clear()
		})
	})
}

// ShowRestoredWorkout switches straight to the dashboard; used on startup
// when a crash-recovery snapshot put the engine into Paused.
func (v *View) ShowRestoredWorkout() {
	v.app.QueueUpdateDraw(func() {
		v.pages.SwitchToPage(pageDashboard)
	})
}

func (v *View) togglePause() {
	v.mu.Lock()
	state := v.lastState
	v.mu.Unlock()

	switch state.(type) {
	case workout.Running:
		v.engine.Pause()
	case workout.Paused:
		if v.session.Active() {
			// Paused mid-session; the session already routes events
			v.engine.Resume()
			return
		}
		// Paused from a restored snapshot; the belt needs spinning up first
		go_func_utils.SafeGo(v.logger, func() {
			if err := v.session.BeginResumed(context.Background()); err != nil {
				v.logger.Printf("View: resume failed: %v", err)
			}
		})
	}
}

func (v *View) stopWorkout() {
	go_func_utils.SafeGo(v.logger, func() {
		v.session.End()
		if err := v.store.ClearSnapshot(context.Background()); err != nil {
			v.logger.Printf("View: failed to clear snapshot: %v", err)
		}
	})
}

func (v *View) onEscape() {
	currentPage, _ := v.pages.GetFrontPage()
	if currentPage == pageDashboard {
		v.mu.Lock()
		state := v.lastState
		v.mu.Unlock()
		switch state.(type) {
		case workout.Running, workout.Paused:
			// Leave the workout running, just go back to the list
		default:
			v.engine.Reset()
		}
		v.pages.SwitchToPage(pageWorkoutSelection)
		v.app.SetFocus(v.workoutList)
		return
	}
	v.app.Stop()
}

// renderState paints the dashboard panels from a state snapshot. Runs on the
// UI loop.
func (v *View) renderState(state workout.ExecutionState) {
	switch s := state.(type) {
	case workout.Idle:
		v.statusPanel.SetText(formatIdle(s))
		v.stepPanel.SetText("")
	case workout.Running:
		v.statusPanel.SetText(formatRunning(s))
		v.stepPanel.SetText(formatStep(s.Step, s.StepElapsedMs, s.StepDistanceM, s.CountdownSec, s.HrAdjustActive))
	case workout.Paused:
		v.statusPanel.SetText(formatPaused(s))
		v.stepPanel.SetText(formatStep(s.Step, s.StepElapsedMs, s.StepDistanceM, -1, false))
	case workout.Completed:
		v.statusPanel.SetText(formatCompleted(s.Summary))
		v.stepPanel.SetText("")
	}
}
