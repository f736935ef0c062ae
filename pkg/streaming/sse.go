package streaming

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"github.com/rs/zerolog/log"
)

// dataPrefix is the SSE event-data field prefix.
var dataPrefix = []byte("data:")

// doneSentinel is the literal terminator token some vendors emit as the last
// data frame. It is an explicit end-of-stream marker, distinct from blank
// lines (which are dropped, not treated as end-of-stream).
const doneSentinel = "[DONE]"

// ExtractorFunc pulls the incremental text delta out of a decoded frame.
// Returning ok=false means "no delta this frame", so metadata-only frames are
// silently skipped rather than treated as errors.
type ExtractorFunc func(frame map[string]interface{}) (string, bool)

// NewSSEStream normalizes an SSE-style byte stream of frames into a lazy
// sequence of text deltas. The body is closed when the stream ends or the
// consumer abandons it.
func NewSSEStream(body io.ReadCloser, extract ExtractorFunc) *Stream {
	s, producer := NewPipe()

	go func() {
		defer func() {
			_ = body.Close()
		}()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		frames := 0
		for scanner.Scan() {
			select {
			case <-producer.Done():
				return
			default:
			}

			line := bytes.TrimSpace(scanner.Bytes())
			if !bytes.HasPrefix(line, dataPrefix) {
				continue
			}
			data := bytes.TrimSpace(bytes.TrimPrefix(line, dataPrefix))
			if len(data) == 0 {
				continue
			}
			if string(data) == doneSentinel {
				log.Debug().Int("frames", frames).Msg("SSE stream terminator received")
				producer.CloseSend(nil)
				return
			}

			var frame map[string]interface{}
			if err := json.Unmarshal(data, &frame); err != nil {
				log.Debug().Err(err).Msg("dropping undecodable SSE frame")
				continue
			}
			frames++

			delta, ok := extract(frame)
			if !ok {
				continue
			}
			if !producer.Send(delta) {
				return
			}
		}

		producer.CloseSend(scanner.Err())
	}()

	return s
}

// DigString walks a decoded JSON object along path, expecting maps at every
// step except the last, which must be a string. List indices are represented
// as-is by Dig; see DigList.
func DigString(frame map[string]interface{}, path ...string) (string, bool) {
	cur := interface{}(frame)
	for i, key := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return "", false
		}
		cur, ok = m[key]
		if !ok {
			return "", false
		}
		if i == len(path)-1 {
			s, ok := cur.(string)
			return s, ok
		}
	}
	return "", false
}

// DigList returns the element of a JSON list found at key, for descending
// into shapes like candidates[0].
func DigList(v interface{}, key string, index int) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, false
	}
	list, ok := m[key].([]interface{})
	if !ok || index >= len(list) {
		return nil, false
	}
	elem, ok := list[index].(map[string]interface{})
	return elem, ok
}
