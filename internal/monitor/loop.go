package monitor

import (
	"context"
	"log"
	"sync"
	"time"

	"smart-lighting-backend/internal/camera"
	"smart-lighting-backend/internal/detect"
	"smart-lighting-backend/internal/model"
)

// State is the lifecycle state of a room's monitoring session.
type State string

const (
	StateIdle      State = "idle"
	StateAcquiring State = "acquiring"
	StateArmed     State = "armed"
	StateCapturing State = "capturing"
	StateCooldown  State = "cooldown"
	StateFailed    State = "failed"
)

// SettingsFunc supplies the current detection settings. The loop re-reads
// them every tick so user edits take effect without a restart.
type SettingsFunc func(ctx context.Context) model.MonitoringSettings

// Hooks receive loop outcomes. Both are optional and are called from the
// loop goroutine.
type Hooks struct {
	// OnDetection fires after every completed detection call, success or not.
	// detectErr is non-nil for backend/timeout failures.
	OnDetection func(roomID string, res ReconcileResult, detectErr error)
	// OnFailure fires when the loop enters the Failed state.
	OnFailure func(roomID string, err error)
}

// Loop owns one room's live-monitoring lifecycle: acquire the camera, run
// the interval timer, capture, detect, reconcile, repeat.
//
// All capture and detection work runs inline in the loop goroutine, so at
// most one detection call is ever in flight for the room; the timer is only
// re-armed after a cycle finishes, so ticks that would overlap a capture are
// dropped rather than queued.
type Loop struct {
	roomID     string
	cameras    camera.Provider
	detector   detect.Client
	reconciler *Reconciler
	settings   SettingsFunc
	timeout    time.Duration
	hooks      Hooks

	mu      sync.Mutex
	state   State
	lastErr error
	stopCh  chan struct{}
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewLoop creates a loop in the Idle state.
func NewLoop(roomID string, cameras camera.Provider, detector detect.Client, reconciler *Reconciler, settings SettingsFunc, timeout time.Duration, hooks Hooks) *Loop {
	return &Loop{
		roomID:     roomID,
		cameras:    cameras,
		detector:   detector,
		reconciler: reconciler,
		settings:   settings,
		timeout:    timeout,
		hooks:      hooks,
		state:      StateIdle,
	}
}

// State returns the current session state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// LastError returns the error that put the loop into Failed, if any.
func (l *Loop) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Start begins a monitoring session. It is a no-op unless the loop is Idle.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateIdle {
		return
	}
	l.startSessionLocked()
}

// Retry re-enters Acquiring after a camera failure. It is a no-op unless the
// loop is Failed.
func (l *Loop) Retry() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateFailed {
		return
	}
	l.lastErr = nil
	l.startSessionLocked()
}

func (l *Loop) startSessionLocked() {
	acqCtx, cancel := context.WithCancel(context.Background())
	l.stopCh = make(chan struct{})
	l.done = make(chan struct{})
	l.cancel = cancel
	l.state = StateAcquiring
	go l.run(acqCtx, l.stopCh, l.done)
}

// Stop ends the session from any state and waits up to grace for the loop
// goroutine to release the camera. A capture already in flight completes but
// its result is discarded. Stop is idempotent.
func (l *Loop) Stop(grace time.Duration) {
	l.mu.Lock()
	if l.state == StateIdle {
		l.mu.Unlock()
		return
	}
	if l.state == StateFailed {
		// Session goroutine already exited; stop just clears the failure.
		l.state = StateIdle
		l.lastErr = nil
		l.mu.Unlock()
		return
	}
	stopCh := l.stopCh
	done := l.done
	cancel := l.cancel
	select {
	case <-stopCh:
	default:
		close(stopCh)
	}
	cancel()
	l.mu.Unlock()

	if done == nil {
		return
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		log.Printf("Warning: monitoring loop for room %s did not stop within %v", l.roomID, grace)
	}
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

func (l *Loop) fail(err error) {
	l.mu.Lock()
	l.state = StateFailed
	l.lastErr = err
	l.mu.Unlock()
	log.Printf("Monitoring loop for room %s failed: %v", l.roomID, err)
	if l.hooks.OnFailure != nil {
		l.hooks.OnFailure(l.roomID, err)
	}
}

func (l *Loop) stopRequested(stopCh <-chan struct{}) bool {
	select {
	case <-stopCh:
		return true
	default:
		return false
	}
}

// run is the session goroutine. Every exit path releases the camera source:
// acquisition failure never holds one, and all later returns go through the
// deferred Release.
func (l *Loop) run(acqCtx context.Context, stopCh chan struct{}, done chan struct{}) {
	defer close(done)

	src, err := l.cameras.Acquire(acqCtx, l.roomID)
	if err != nil {
		if l.stopRequested(stopCh) {
			l.setState(StateIdle)
			return
		}
		l.fail(err)
		return
	}
	defer src.Release()

	l.setState(StateArmed)
	log.Printf("Live monitoring started for room %s", l.roomID)

	settings := l.settings(context.Background())
	timer := time.NewTimer(interval(settings))
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			l.setState(StateIdle)
			log.Printf("Live monitoring stopped for room %s", l.roomID)
			return
		case <-timer.C:
			settings = l.settings(context.Background())
			ok := l.captureCycle(stopCh, src, settings)
			if !ok {
				return
			}
			l.setState(StateArmed)
			timer.Reset(interval(settings))
		}
	}
}

// captureCycle runs one Capturing → Cooldown pass. It returns false when the
// session goroutine must exit (stop requested or camera failure).
func (l *Loop) captureCycle(stopCh chan struct{}, src camera.Source, settings model.MonitoringSettings) bool {
	l.setState(StateCapturing)

	frame, err := src.Capture(context.Background())
	if err != nil {
		if l.stopRequested(stopCh) {
			l.setState(StateIdle)
			return false
		}
		l.fail(err)
		return false
	}

	// The detect call is bounded by its own timeout, not by stop: a stop
	// during capture lets the call finish and discards the result.
	detectCtx, cancel := context.WithTimeout(context.Background(), l.timeout)
	outcome, detectErr := l.detector.Detect(detectCtx, frame, l.roomID, settings.ConfidenceThreshold)
	cancel()

	l.setState(StateCooldown)

	if l.stopRequested(stopCh) {
		// Discard: reconciling now could revive occupancy after the user
		// disabled monitoring.
		l.setState(StateIdle)
		log.Printf("Live monitoring stopped for room %s, in-flight result discarded", l.roomID)
		return false
	}

	res, err := l.reconciler.Reconcile(context.Background(), l.roomID, outcome, detectErr, settings, "live_camera")
	if err != nil {
		// Repository errors never kill the loop.
		log.Printf("Error reconciling detection for room %s: %v", l.roomID, err)
	}
	if detectErr != nil {
		log.Printf("Detection failed for room %s: %v", l.roomID, detectErr)
	}
	if l.hooks.OnDetection != nil {
		l.hooks.OnDetection(l.roomID, res, detectErr)
	}
	return true
}

func interval(settings model.MonitoringSettings) time.Duration {
	seconds := settings.IntervalSeconds
	if seconds <= 0 {
		seconds = 3
	}
	return time.Duration(seconds) * time.Second
}
