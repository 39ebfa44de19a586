// Package relay forwards a generated text stream to a caller as it arrives.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"healthshield-ai/internal/platform/logger"
)

// ErrorMarker is the last thing written to a stream that failed upstream.
const ErrorMarker = "\n[Error processing response]"

const DefaultBuffer = 16

var ErrPipeUsed = errors.New("relay pipe already used")

type State int32

const (
	StateOpen State = iota
	StateStreaming
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Source is an upstream delta stream. Recv returns io.EOF when done. Close
// must unblock a pending Recv.
type Source interface {
	Recv() (string, error)
	Close() error
}

// Sink is the caller-facing output. WriteDelta must deliver immediately.
type Sink interface {
	WriteDelta(text string) error
	Close() error
}

// Pipe relays one Source into one Sink. A Pipe is single use.
type Pipe struct {
	log    *logger.Logger
	buffer int
	state  atomic.Int32
}

func NewPipe(log *logger.Logger, buffer int) *Pipe {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Pipe{log: log.With("service", "StreamRelay"), buffer: buffer}
}

func (p *Pipe) State() State {
	return State(p.state.Load())
}

// Run forwards every non-empty delta from src to sink until src ends, src
// fails, sink fails or ctx is done. The sink is always closed on return and
// src is always released. An upstream failure is reported to the caller as
// ErrorMarker and returned.
func (p *Pipe) Run(ctx context.Context, src Source, sink Sink) error {
	if !p.state.CompareAndSwap(int32(StateOpen), int32(StateStreaming)) {
		return ErrPipeUsed
	}

	produceCtx, stop := context.WithCancel(ctx)
	deltas := make(chan string, p.buffer)
	upstreamErr := make(chan error, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(deltas)
		for {
			d, err := src.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					upstreamErr <- err
				}
				return
			}
			if d == "" {
				continue
			}
			select {
			case deltas <- d:
			case <-produceCtx.Done():
				return
			}
		}
	}()

	release := func() {
		stop()
		_ = src.Close()
		wg.Wait()
	}

	for {
		select {
		case <-ctx.Done():
			release()
			_ = sink.Close()
			p.state.Store(int32(StateClosed))
			p.log.Debug("relay cancelled by caller")
			return ctx.Err()

		case d, ok := <-deltas:
			if !ok {
				release()
				select {
				case err := <-upstreamErr:
					p.log.Warn("upstream stream failed", "error", err)
					p.fail(sink)
					return err
				default:
				}
				p.state.Store(int32(StateClosed))
				return sink.Close()
			}
			if err := sink.WriteDelta(d); err != nil {
				release()
				_ = sink.Close()
				p.state.Store(int32(StateErrored))
				p.log.Warn("write to caller failed", "error", err)
				return fmt.Errorf("write delta failed: %w", err)
			}
		}
	}
}

func (p *Pipe) fail(sink Sink) {
	_ = sink.WriteDelta(ErrorMarker)
	_ = sink.Close()
	p.state.Store(int32(StateErrored))
}

// Abort reports a failure that happened before any upstream stream existed.
func Abort(sink Sink) {
	_ = sink.WriteDelta(ErrorMarker)
	_ = sink.Close()
}
