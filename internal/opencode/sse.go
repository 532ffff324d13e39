package opencode

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
)

const (
	sseInitialBuffer = 64 * 1024
	// Tool output can be large; frames beyond this are dropped with the stream.
	sseMaxFrame = 8 * 1024 * 1024
)

// Stream is one open subscription to the server's event stream.
type Stream struct {
	frames <-chan []byte
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Frames yields the data payload of each SSE frame. It is closed when the
// connection ends for any reason.
func (s *Stream) Frames() <-chan []byte {
	return s.frames
}

// Close aborts the connection and waits for the reader to stop.
func (s *Stream) Close() {
	if s == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Err reports why the stream ended. It is nil while the stream is live and
// after a clean EOF.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// SubscribeEvents opens GET /event. It returns once response headers arrive,
// so a nil error means the stream is open.
func (c *Client) SubscribeEvents(ctx context.Context) (*Stream, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	req, err := c.newRequest(streamCtx, http.MethodGet, "/event", nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		cancel()
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = resp.Status
		}
		return nil, &RequestError{Method: http.MethodGet, Path: "/event", StatusCode: resp.StatusCode, Message: msg}
	}

	frames := make(chan []byte, 64)
	stream := &Stream{frames: frames, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(stream.done)
		defer close(frames)
		defer resp.Body.Close()
		err := ReadFrames(streamCtx, resp.Body, func(data []byte) bool {
			select {
			case frames <- data:
				return true
			case <-streamCtx.Done():
				return false
			}
		})
		if err != nil && streamCtx.Err() == nil {
			stream.setErr(err)
		}
	}()
	return stream, nil
}

// ReadFrames parses SSE framing from r and calls emit with each frame's data.
// Multiple data lines in one frame are joined with newlines. Comments and
// the event, id and retry fields are ignored. It returns when r is
// exhausted or ctx is done, or when emit returns false.
func ReadFrames(ctx context.Context, r io.Reader, emit func([]byte) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, sseInitialBuffer), sseMaxFrame)
	var data []string
	flush := func() bool {
		if len(data) == 0 {
			return true
		}
		payload := strings.Join(data, "\n")
		data = data[:0]
		return emit([]byte(payload))
	}
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			if !flush() {
				return nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		if field != "data" {
			continue
		}
		data = append(data, strings.TrimPrefix(value, " "))
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	// An unterminated trailing frame is discarded.
	return nil
}
