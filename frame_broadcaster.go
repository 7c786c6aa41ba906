package stencil

import (
	"context"
	"io"
	"log/slog"
	"runtime/trace"
	"sync"
	"sync/atomic"
)

// Frame is one render of the previewed overlay.
type Frame struct {
	Revision uint32
	PNG      []byte
	Metadata Metadata

	streamEnded bool
	streamErr   error
}

// FrameSource produces frames. Read blocks until there is a new frame. It
// returns io.EOF when there will be no more, and errIgnoreThisRow to skip a
// frame that could not be rendered.
type FrameSource interface {
	Read(ctx context.Context) (Frame, error)
}

// FrameBroadcaster reads frames from a source and sends each one to every
// registered channel. It keeps the latest frame so that a channel registered
// late starts from the current picture.
type FrameBroadcaster struct {
	input FrameSource

	mutex sync.Mutex
	wg    sync.WaitGroup

	streamEnded atomic.Bool
	// Only read after streamEnded is set.
	err error

	// Should be buffered. One blocked channel blocks every other.
	channelsForLiveUpdate []chan<- Frame

	latest    Frame
	hasLatest bool
	// Set once the stream end is published.
	end *Frame

	numFramesEmitted int

	logger *slog.Logger
}

func NewFrameBroadcaster(input FrameSource) *FrameBroadcaster {
	return &FrameBroadcaster{
		input:                 input,
		channelsForLiveUpdate: make([]chan<- Frame, 0),
		logger:                slog.Default().With("tag", "FrameBroadcaster"),
	}
}

func (b *FrameBroadcaster) Start(ctx context.Context) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		err := b.run(ctx)

		b.err = err
		b.streamEnded.Store(true)

		b.Publish(ctx, Frame{streamEnded: true, streamErr: err})

		logger := b.logger.With("numFramesEmitted", b.numFramesEmitted)
		if err != nil {
			logger = logger.With("error", err)
		}
		logger.Info("frame broadcaster stream ended")
	}()
}

func (b *FrameBroadcaster) Wait() {
	b.wg.Wait()
}

// Err returns the error that ended the stream, once it has ended.
func (b *FrameBroadcaster) Err() error {
	if !b.streamEnded.Load() {
		return nil
	}
	return b.err
}

// Latest returns the most recent frame that is not the end of the stream.
func (b *FrameBroadcaster) Latest() (Frame, bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.latest, b.hasLatest
}

// RegisterChannel sends the latest frame to c, if there is one, and then
// every later frame. A channel registered after the stream ended also gets
// the stream end right away. The lock is held while the cached frames are
// sent, so no frame is missed or sent twice.
func (b *FrameBroadcaster) RegisterChannel(ctx context.Context, c chan<- Frame) {
	traceCtx, task := trace.NewTask(ctx, "RegisterChannel")
	defer task.End()

	trace.WithRegion(traceCtx, "Lock", b.mutex.Lock)
	defer b.mutex.Unlock()

	if b.hasLatest {
		trace.WithRegion(traceCtx, "pushLatestFrameToChannel", func() {
			c <- b.latest
		})
	}
	if b.end != nil {
		c <- *b.end
	}

	b.channelsForLiveUpdate = append(b.channelsForLiveUpdate, c)

	b.logger.With(
		"newChannel", c,
		"channels", len(b.channelsForLiveUpdate),
	).Info("registered channel")
}

// DeregisterChannel stops sending frames to c. c must not be closed before
// this returns.
func (b *FrameBroadcaster) DeregisterChannel(ctx context.Context, c chan<- Frame) {
	traceCtx, task := trace.NewTask(ctx, "DeregisterChannel")
	defer task.End()

	trace.WithRegion(traceCtx, "Lock", b.mutex.Lock)
	defer b.mutex.Unlock()

	b.channelsForLiveUpdate = Filter(b.channelsForLiveUpdate, func(channel chan<- Frame) bool {
		return channel != c
	})
	b.logger.With(
		"removedChannel", c,
		"channels", len(b.channelsForLiveUpdate),
	).Info("deregistered channel")
}

func (b *FrameBroadcaster) run(ctx context.Context) error {
	for {
		traceCtx, task := trace.NewTask(ctx, "FrameBroadcasterLoop")

		var frame Frame
		var err error
		trace.WithRegion(traceCtx, "FrameSourceRead", func() {
			frame, err = b.input.Read(traceCtx)
		})

		if err == errIgnoreThisRow {
			task.End()
			continue
		} else if err == io.EOF {
			task.End()
			return nil
		} else if err != nil {
			task.End()
			return err
		}

		b.Publish(traceCtx, frame)
		task.End()
	}
}

// Publish caches frame as the latest and sends it to every registered
// channel.
func (b *FrameBroadcaster) Publish(traceCtx context.Context, frame Frame) {
	trace.WithRegion(traceCtx, "Lock", b.mutex.Lock)
	defer b.mutex.Unlock()

	if !frame.streamEnded {
		b.numFramesEmitted++
		b.latest = frame
		b.hasLatest = true
		b.logger.With(
			"revision", frame.Revision,
			"bytes", len(frame.PNG),
		).Debug("new frame")
	} else {
		b.end = &frame
	}

	trace.WithRegion(traceCtx, "Broadcast", func() {
		for _, c := range b.channelsForLiveUpdate {
			c <- frame
		}
	})
}
