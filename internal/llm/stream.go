package llm

import (
	"context"
	"io"
	"strings"
)

type channelStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	events <-chan Event
}

func newEventStream(ctx context.Context, run func(context.Context, chan<- Event) error) Stream {
	streamCtx, cancel := context.WithCancel(ctx)
	ch := make(chan Event, 16)
	go func() {
		defer close(ch)
		if err := run(streamCtx, ch); err != nil {
			select {
			case ch <- Event{Type: EventError, Err: err}:
			case <-streamCtx.Done():
			}
		}
	}()
	return &channelStream{ctx: streamCtx, cancel: cancel, events: ch}
}

func (s *channelStream) Recv() (Event, error) {
	// Drain buffered events before looking at ctx so a final EventDone is
	// not lost when both are ready.
	select {
	case event, ok := <-s.events:
		if !ok {
			return Event{}, io.EOF
		}
		return event, nil
	default:
	}

	select {
	case <-s.ctx.Done():
		return Event{}, s.ctx.Err()
	case event, ok := <-s.events:
		if !ok {
			return Event{}, io.EOF
		}
		return event, nil
	}
}

func (s *channelStream) Close() error {
	s.cancel()
	return nil
}

// collectText reads a stream to completion and returns the concatenated text.
func collectText(stream Stream) (string, error) {
	defer stream.Close()

	var buf strings.Builder
	for {
		ev, err := stream.Recv()
		if err == io.EOF {
			return buf.String(), nil
		}
		if err != nil {
			return buf.String(), err
		}
		switch ev.Type {
		case EventTextDelta:
			buf.WriteString(ev.Text)
		case EventError:
			return buf.String(), ev.Err
		case EventDone:
			return buf.String(), nil
		}
	}
}
