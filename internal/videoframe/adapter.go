package videoframe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	ErrNoRoom    = errors.New("videoframe: room url is required")
	ErrNotJoined = errors.New("videoframe: not in a call")
)

type State string

const (
	StateIdle    State = "idle"
	StateJoining State = "joining"
	StateJoined  State = "joined"
	StateLeft    State = "left"
	StateFailed  State = "failed"
)

// Adapter wraps at most one Frame at a time.
type Adapter struct {
	factory FrameFactory
	onLeave func()
	log     *slog.Logger

	mu      sync.Mutex
	frame   Frame
	roomURL string
	state   State
	lastErr error
}

// New returns an idle adapter. onLeave runs after the participant leaves,
// either through Leave or through the frame's own leave control.
func New(factory FrameFactory, onLeave func(), log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{factory: factory, onLeave: onLeave, log: log, state: StateIdle}
}

// Mount joins roomURL with audio and video on. Mounting the joined room again
// is a no-op; mounting a different room destroys the current frame first.
func (a *Adapter) Mount(ctx context.Context, roomURL string) error {
	if roomURL == "" {
		return ErrNoRoom
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.frame != nil && a.roomURL == roomURL && a.state == StateJoined {
		return nil
	}
	a.destroyLocked()

	f, err := a.factory(ctx)
	if err != nil {
		a.fail(fmt.Errorf("videoframe: create frame: %w", err))
		return a.lastErr
	}
	a.frame = f
	a.roomURL = roomURL
	a.state = StateJoining

	if err := f.Join(ctx, JoinOptions{URL: roomURL}); err != nil {
		a.destroyLocked()
		a.fail(fmt.Errorf("videoframe: join %s: %w", roomURL, err))
		return a.lastErr
	}
	a.state = StateJoined
	a.lastErr = nil
	return nil
}

// Leave leaves the call and releases the frame.
func (a *Adapter) Leave(ctx context.Context) error {
	a.mu.Lock()
	if a.frame == nil {
		a.mu.Unlock()
		return nil
	}
	err := a.frame.Leave(ctx)
	a.destroyLocked()
	a.state = StateLeft
	a.mu.Unlock()

	a.notifyLeft()
	if err != nil {
		return fmt.Errorf("videoframe: leave: %w", err)
	}
	return nil
}

// FrameLeft handles the frame reporting that the participant left from
// inside the frame.
func (a *Adapter) FrameLeft() {
	a.mu.Lock()
	if a.frame == nil {
		a.mu.Unlock()
		return
	}
	a.destroyLocked()
	a.state = StateLeft
	a.mu.Unlock()

	a.notifyLeft()
}

// Unmount releases the frame without leaving gracefully.
func (a *Adapter) Unmount() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroyLocked()
	a.state = StateIdle
}

// ToggleMute flips the microphone and returns whether audio is now on.
func (a *Adapter) ToggleMute() (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.frame == nil || a.state != StateJoined {
		return false, ErrNotJoined
	}
	on := !a.frame.LocalAudio()
	if err := a.frame.SetLocalAudio(on); err != nil {
		return !on, fmt.Errorf("videoframe: set audio: %w", err)
	}
	return on, nil
}

// ToggleCamera flips the camera and returns whether video is now on.
func (a *Adapter) ToggleCamera() (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.frame == nil || a.state != StateJoined {
		return false, ErrNotJoined
	}
	on := !a.frame.LocalVideo()
	if err := a.frame.SetLocalVideo(on); err != nil {
		return !on, fmt.Errorf("videoframe: set video: %w", err)
	}
	return on, nil
}

func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Err is the error that put the adapter in StateFailed.
func (a *Adapter) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

func (a *Adapter) RoomURL() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.roomURL
}

func (a *Adapter) fail(err error) {
	a.state = StateFailed
	a.lastErr = err
}

// destroyLocked clears the frame before destroying it so no path can destroy
// the same frame twice.
func (a *Adapter) destroyLocked() {
	f := a.frame
	if f == nil {
		return
	}
	a.frame = nil
	a.roomURL = ""
	if err := f.Destroy(); err != nil {
		a.log.Warn("videoframe destroy failed", "err", err)
	}
}

func (a *Adapter) notifyLeft() {
	if a.onLeave != nil {
		a.onLeave()
	}
}
