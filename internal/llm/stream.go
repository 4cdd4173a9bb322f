package llm

import (
	"bufio"
	"io"
	"strings"
)

// frameParser turns one raw stream frame (a complete line with any
// transport prefix stripped) into a ResponseChunk. Returning ok=false
// discards the frame without failing the stream; returning io.EOF as
// err ends the stream cleanly.
type frameParser func(frame string) (chunk ResponseChunk, ok bool, err error)

// lineStream reads newline-delimited frames from an HTTP response body
// and feeds them through a frameParser. It buffers partial reads until
// a full line is available and drops frames the parser cannot decode,
// so one malformed frame never kills the stream.
type lineStream struct {
	reader  *bufio.Reader
	closer  io.Closer
	parser  frameParser
	current ResponseChunk
	err     error
	done    bool
	closed  bool
}

// newLineStream wraps a response body in a ChunkStream using the given
// per-provider frame parser.
func newLineStream(body io.ReadCloser, parser frameParser) *lineStream {
	return &lineStream{
		reader: bufio.NewReader(body),
		closer: body,
		parser: parser,
	}
}

func (s *lineStream) Next() bool {
	if s.done {
		return false
	}
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			// A trailing frame without a newline is still valid.
			if err == io.EOF && strings.TrimSpace(line) != "" {
				if chunk, ok, perr := s.parser(strings.TrimSpace(line)); perr == nil && ok {
					s.current = chunk
					s.done = true
					return true
				}
			}
			s.done = true
			if err != io.EOF {
				s.err = err
			}
			return false
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		chunk, ok, perr := s.parser(line)
		if perr != nil {
			s.done = true
			if perr != io.EOF {
				s.err = perr
			}
			return false
		}
		if !ok {
			continue
		}
		s.current = chunk
		return true
	}
}

func (s *lineStream) Current() ResponseChunk { return s.current }

func (s *lineStream) Err() error { return s.err }

func (s *lineStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.done = true
	return s.closer.Close()
}

// sseData extracts the payload of an SSE "data:" line. The second
// return is false for comments, event names and other non-data lines.
func sseData(line string) (string, bool) {
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, "data:")), true
}

// aggregateChunks folds a consumed chunk sequence into one logical
// response: content fragments are concatenated, the last non-empty
// finish reason and usage win.
type aggregator struct {
	id           string
	content      strings.Builder
	finishReason string
	usage        *Usage
}

func (a *aggregator) add(chunk ResponseChunk) {
	if a.id == "" && chunk.ID != "" {
		a.id = chunk.ID
	}
	if chunk.Content != "" {
		a.content.WriteString(chunk.Content)
	}
	if chunk.FinishReason != "" {
		a.finishReason = chunk.FinishReason
	}
	if chunk.Usage != nil {
		a.usage = chunk.Usage
	}
}

func (a *aggregator) response() *ChatResponse {
	return &ChatResponse{
		ID:           a.id,
		Content:      a.content.String(),
		Role:         RoleAssistant,
		FinishReason: a.finishReason,
		Usage:        a.usage,
	}
}
