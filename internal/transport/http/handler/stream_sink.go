package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// streamSink writes chat deltas as a chunked text/plain body. Headers are
// committed on the first write so errors before that can still be JSON.
type streamSink struct {
	c       *gin.Context
	started bool
}

func newStreamSink(c *gin.Context) *streamSink {
	return &streamSink{c: c}
}

func (s *streamSink) Started() bool {
	return s.started
}

func (s *streamSink) WriteDelta(text string) error {
	s.begin()
	if _, err := s.c.Writer.WriteString(text); err != nil {
		return err
	}
	s.c.Writer.Flush()
	return nil
}

func (s *streamSink) Close() error {
	s.begin()
	s.c.Writer.Flush()
	return nil
}

func (s *streamSink) begin() {
	if s.started {
		return
	}
	s.started = true
	h := s.c.Writer.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	s.c.Status(http.StatusOK)
	s.c.Writer.WriteHeaderNow()
}
