package videoframe

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFrame struct {
	joinErr  error
	joined   JoinOptions
	left     int
	destroys int
	audio    bool
	video    bool
}

func (f *fakeFrame) Join(ctx context.Context, opts JoinOptions) error {
	if f.joinErr != nil {
		return f.joinErr
	}
	f.joined = opts
	f.audio = !opts.StartAudioOff
	f.video = !opts.StartVideoOff
	return nil
}

func (f *fakeFrame) Leave(ctx context.Context) error { f.left++; return nil }
func (f *fakeFrame) LocalAudio() bool                { return f.audio }
func (f *fakeFrame) LocalVideo() bool                { return f.video }
func (f *fakeFrame) SetLocalAudio(on bool) error     { f.audio = on; return nil }
func (f *fakeFrame) SetLocalVideo(on bool) error     { f.video = on; return nil }
func (f *fakeFrame) Destroy() error                  { f.destroys++; return nil }

type factory struct {
	mu      sync.Mutex
	joinErr error
	frames  []*fakeFrame
}

func (fa *factory) create(ctx context.Context) (Frame, error) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	f := &fakeFrame{joinErr: fa.joinErr}
	fa.frames = append(fa.frames, f)
	return f, nil
}

func (fa *factory) assertEachDestroyedOnce(t *testing.T) {
	t.Helper()
	for i, f := range fa.frames {
		assert.Equalf(t, 1, f.destroys, "frame %d", i)
	}
}

func TestMountJoinsWithMediaOn(t *testing.T) {
	fa := &factory{}
	a := New(fa.create, nil, nil)

	require.NoError(t, a.Mount(context.Background(), "https://x/room-1"))
	require.Len(t, fa.frames, 1)
	assert.Equal(t, JoinOptions{URL: "https://x/room-1"}, fa.frames[0].joined)
	assert.Equal(t, StateJoined, a.State())

	// same room again keeps the frame
	require.NoError(t, a.Mount(context.Background(), "https://x/room-1"))
	assert.Len(t, fa.frames, 1)

	a.Unmount()
	fa.assertEachDestroyedOnce(t)
	assert.Equal(t, StateIdle, a.State())
}

func TestMountNewRoomDestroysPrevious(t *testing.T) {
	fa := &factory{}
	a := New(fa.create, nil, nil)

	require.NoError(t, a.Mount(context.Background(), "https://x/room-1"))
	require.NoError(t, a.Mount(context.Background(), "https://x/room-2"))
	require.Len(t, fa.frames, 2)
	assert.Equal(t, 1, fa.frames[0].destroys)
	assert.Equal(t, 0, fa.frames[1].destroys)
	assert.Equal(t, "https://x/room-2", a.RoomURL())

	a.Unmount()
	a.Unmount()
	fa.assertEachDestroyedOnce(t)
}

func TestFailedJoinDestroysFrame(t *testing.T) {
	fa := &factory{joinErr: errors.New("camera denied")}
	a := New(fa.create, nil, nil)

	err := a.Mount(context.Background(), "https://x/room-1")
	require.Error(t, err)
	assert.Equal(t, StateFailed, a.State())
	assert.ErrorContains(t, a.Err(), "camera denied")

	a.Unmount()
	fa.assertEachDestroyedOnce(t)
}

func TestLeaveNotifiesAndReleases(t *testing.T) {
	fa := &factory{}
	left := 0
	a := New(fa.create, func() { left++ }, nil)

	require.NoError(t, a.Mount(context.Background(), "https://x/room-1"))
	require.NoError(t, a.Leave(context.Background()))
	assert.Equal(t, 1, left)
	assert.Equal(t, 1, fa.frames[0].left)
	assert.Equal(t, StateLeft, a.State())

	require.NoError(t, a.Leave(context.Background()))
	a.FrameLeft()
	a.Unmount()
	assert.Equal(t, 1, left)
	fa.assertEachDestroyedOnce(t)
}

func TestFrameLeftFromInsideFrame(t *testing.T) {
	fa := &factory{}
	left := 0
	a := New(fa.create, func() { left++ }, nil)

	require.NoError(t, a.Mount(context.Background(), "https://x/room-1"))
	a.FrameLeft()
	assert.Equal(t, 1, left)
	assert.Equal(t, 0, fa.frames[0].left)
	fa.assertEachDestroyedOnce(t)
}

func TestToggles(t *testing.T) {
	fa := &factory{}
	a := New(fa.create, nil, nil)

	_, err := a.ToggleMute()
	require.ErrorIs(t, err, ErrNotJoined)

	require.NoError(t, a.Mount(context.Background(), "https://x/room-1"))

	on, err := a.ToggleMute()
	require.NoError(t, err)
	assert.False(t, on)
	on, err = a.ToggleMute()
	require.NoError(t, err)
	assert.True(t, on)

	on, err = a.ToggleCamera()
	require.NoError(t, err)
	assert.False(t, on)
	assert.False(t, fa.frames[0].video)
}

func TestMountRequiresURL(t *testing.T) {
	fa := &factory{}
	a := New(fa.create, nil, nil)
	require.ErrorIs(t, a.Mount(context.Background(), ""), ErrNoRoom)
	assert.Empty(t, fa.frames)
}
