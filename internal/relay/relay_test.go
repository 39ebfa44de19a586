package relay

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthshield-ai/internal/platform/logger"
)

type step struct {
	delta string
	err   error
}

// scriptedSource plays back steps, then blocks until closed.
type scriptedSource struct {
	steps  []step
	next   int
	recvs  atomic.Int64
	closed chan struct{}
	once   sync.Once
}

func newScriptedSource(steps ...step) *scriptedSource {
	return &scriptedSource{steps: steps, closed: make(chan struct{})}
}

func (s *scriptedSource) Recv() (string, error) {
	s.recvs.Add(1)
	if s.next < len(s.steps) {
		st := s.steps[s.next]
		s.next++
		return st.delta, st.err
	}
	<-s.closed
	return "", errors.New("source closed")
}

func (s *scriptedSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *scriptedSource) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

type recordingSink struct {
	mu         sync.Mutex
	writes     []string
	closes     int
	afterClose int
	gate       chan struct{}
	writeErr   error
}

func (s *recordingSink) WriteDelta(text string) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closes > 0 {
		s.afterClose++
	}
	if s.writeErr != nil {
		return s.writeErr
	}
	s.writes = append(s.writes, text)
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *recordingSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

func TestPipeTwoDeltasThenUpstreamError(t *testing.T) {
	boom := errors.New("upstream reset")
	src := newScriptedSource(step{delta: "Room rent "}, step{delta: "is capped"}, step{err: boom})
	sink := &recordingSink{}
	p := NewPipe(logger.Nop(), 4)

	err := p.Run(context.Background(), src, sink)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"Room rent ", "is capped", ErrorMarker}, sink.snapshot())
	assert.Equal(t, 1, sink.closes)
	assert.Equal(t, 0, sink.afterClose)
	assert.Equal(t, StateErrored, p.State())
	assert.True(t, src.isClosed())
}

func TestPipeCompletes(t *testing.T) {
	src := newScriptedSource(step{delta: "a"}, step{delta: ""}, step{delta: "b"}, step{err: io.EOF})
	sink := &recordingSink{}
	p := NewPipe(logger.Nop(), 0)

	require.NoError(t, p.Run(context.Background(), src, sink))
	assert.Equal(t, []string{"a", "b"}, sink.snapshot())
	assert.Equal(t, 1, sink.closes)
	assert.Equal(t, StateClosed, p.State())
	assert.True(t, src.isClosed())

	assert.ErrorIs(t, p.Run(context.Background(), src, sink), ErrPipeUsed)
}

func TestPipeCallerCancellationReleasesUpstream(t *testing.T) {
	src := newScriptedSource(step{delta: "first"})
	sink := &recordingSink{}
	p := NewPipe(logger.Nop(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, src, sink) }()

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop after cancellation")
	}
	assert.True(t, src.isClosed())
	assert.Equal(t, StateClosed, p.State())
	assert.Equal(t, []string{"first"}, sink.snapshot())
}

func TestPipeBackpressureBoundsReadAhead(t *testing.T) {
	steps := make([]step, 0, 21)
	for i := 0; i < 20; i++ {
		steps = append(steps, step{delta: "x"})
	}
	steps = append(steps, step{err: io.EOF})
	src := newScriptedSource(steps...)
	sink := &recordingSink{gate: make(chan struct{})}
	p := NewPipe(logger.Nop(), 2)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background(), src, sink) }()

	time.Sleep(50 * time.Millisecond)
	// one delta held by the sink, two buffered, one waiting to be sent
	assert.LessOrEqual(t, src.recvs.Load(), int64(4))

	close(sink.gate)
	require.NoError(t, <-done)
	assert.Len(t, sink.snapshot(), 20)
}

func TestPipeSinkFailure(t *testing.T) {
	src := newScriptedSource(step{delta: "a"}, step{delta: "b"})
	sink := &recordingSink{writeErr: errors.New("client gone")}
	p := NewPipe(logger.Nop(), 1)

	err := p.Run(context.Background(), src, sink)
	assert.ErrorContains(t, err, "client gone")
	assert.Equal(t, StateErrored, p.State())
	assert.True(t, src.isClosed())
}

func TestAbortWritesMarkerAndCloses(t *testing.T) {
	sink := &recordingSink{}
	Abort(sink)
	assert.Equal(t, []string{ErrorMarker}, sink.snapshot())
	assert.Equal(t, 1, sink.closes)
}
