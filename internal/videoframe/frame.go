// Package videoframe owns the lifecycle of one embedded call frame.
//
// A Frame holds camera and microphone handles for as long as it exists, so
// every Frame the Adapter creates is destroyed exactly once: on leave, on
// unmount, on a room change and after a failed join.
package videoframe

import "context"

// JoinOptions is the initial media state a frame joins with.
type JoinOptions struct {
	URL           string
	StartVideoOff bool
	StartAudioOff bool
}

// Frame is the embeddable call frame of a video SDK.
type Frame interface {
	Join(ctx context.Context, opts JoinOptions) error
	Leave(ctx context.Context) error
	LocalAudio() bool
	LocalVideo() bool
	SetLocalAudio(on bool) error
	SetLocalVideo(on bool) error
	Destroy() error
}

// FrameFactory creates a new, unjoined frame.
type FrameFactory func(ctx context.Context) (Frame, error)
