package controller

import (
	"bufio"
	"errors"
	"sync"

	"clinical-intake-be/pkg/ai/pipeline"
)

var errClientGone = errors.New("client disconnected")

type streamEvent struct {
	chunk  string
	result *pipeline.TurnResult
	err    error
	done   bool
}

// turnStream runs a turn in its own goroutine and hands its chunks to the HTTP writer.
// If the writer goes away the turn keeps running; only forwarding stops.
type turnStream struct {
	chunks   chan string
	final    chan streamEvent
	gone     chan struct{}
	goneOnce sync.Once
}

func startTurn(run func(sink pipeline.Sink) (*pipeline.TurnResult, error)) *turnStream {
	s := &turnStream{
		chunks: make(chan string, 64),
		final:  make(chan streamEvent, 1),
		gone:   make(chan struct{}),
	}

	go func() {
		result, err := run(pipeline.SinkFunc(s.write))
		s.final <- streamEvent{result: result, err: err, done: true}
		close(s.chunks)
	}()
	return s
}

func (s *turnStream) write(chunk string) error {
	select {
	case <-s.gone:
		return errClientGone
	default:
	}
	select {
	case s.chunks <- chunk:
		return nil
	case <-s.gone:
		return errClientGone
	}
}

// next blocks until the first chunk or the end of the turn.
func (s *turnStream) next() streamEvent {
	if chunk, ok := <-s.chunks; ok {
		return streamEvent{chunk: chunk}
	}
	return <-s.final
}

func (s *turnStream) abandon() {
	s.goneOnce.Do(func() { close(s.gone) })
}

// drain writes first and every following chunk, flushing each one. Once a write fails it
// stops forwarding but still waits for the turn, so the final event is always returned.
// delivered is false when the client went away.
func (s *turnStream) drain(w *bufio.Writer, first string) (final streamEvent, delivered bool) {
	forwarding := writeChunk(w, first) == nil
	if !forwarding {
		s.abandon()
	}

	for chunk := range s.chunks {
		if !forwarding {
			continue
		}
		if err := writeChunk(w, chunk); err != nil {
			forwarding = false
			s.abandon()
		}
	}

	return <-s.final, forwarding
}

func writeChunk(w *bufio.Writer, chunk string) error {
	if _, err := w.WriteString(chunk); err != nil {
		return err
	}
	return w.Flush()
}
