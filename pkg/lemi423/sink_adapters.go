package lemi423

import (
	"errors"
	"fmt"
	"sync"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("lemi423: channel sink closed")

// ResultHandler receives one calibrated file.
type ResultHandler func(*FileResult) error

// NewCallbackSink adapts a ResultHandler into a Sink so callers can plug
// arbitrary functions without defining structs. Handlers run on the
// collecting goroutine, one file at a time.
func NewCallbackSink(name string, fn ResultHandler) Sink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes results via a channel; it returns the sink, the read-only channel,
// and a close function that the caller should invoke once Run has returned.
func NewChannelSink(name string, buffer int) (Sink, <-chan *FileResult, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan *FileResult, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type callbackSink struct {
	name string
	fn   ResultHandler
}

func (s *callbackSink) WriteResult(res *FileResult) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	if res == nil {
		return nil
	}
	return s.fn(res)
}

func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name   string
	ch     chan *FileResult
	closed chan struct{}
	once   sync.Once
}

func (s *channelSink) WriteResult(res *FileResult) error {
	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}

	if res == nil {
		return nil
	}

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case s.ch <- res:
		return nil
	}
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		close(s.ch)
	})
}
