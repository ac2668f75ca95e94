package progress

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoTerminal is returned by ReadTerminal when the stream ends before a
// completion or error payload arrived.
var ErrNoTerminal = errors.New("progress stream ended without a terminal event")

type wireProgress struct {
	Message  string `json:"message"`
	Progress int    `json:"progress"`
}

type wireComplete struct {
	Complete      bool `json:"complete"`
	TotalPosts    int  `json:"totalPosts"`
	NewPosts      int  `json:"newPosts"`
	ExistingPosts int  `json:"existingPosts"`
}

type wireFailure struct {
	Error string `json:"error"`
}

// wireFrame is the union used when decoding.
type wireFrame struct {
	Message       *string `json:"message"`
	Progress      *int    `json:"progress"`
	Complete      bool    `json:"complete"`
	TotalPosts    int     `json:"totalPosts"`
	NewPosts      int     `json:"newPosts"`
	ExistingPosts int     `json:"existingPosts"`
	Error         *string `json:"error"`
}

// MarshalEvent returns the JSON payload for ev.
func MarshalEvent(ev Event) ([]byte, error) {
	switch v := ev.(type) {
	case Progress:
		return json.Marshal(wireProgress{Message: v.Message, Progress: v.Percent})
	case Complete:
		return json.Marshal(wireComplete{
			Complete:      true,
			TotalPosts:    v.TotalPosts,
			NewPosts:      v.NewPosts,
			ExistingPosts: v.ExistingPosts,
		})
	case Failure:
		return json.Marshal(wireFailure{Error: v.Message})
	default:
		return nil, fmt.Errorf("unsupported progress event %T", ev)
	}
}

// Encode writes ev as one `data: <json>\n\n` frame.
func Encode(w io.Writer, ev Event) error {
	payload, err := MarshalEvent(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write event frame: %w", err)
	}
	return nil
}

// DecodePayload parses one frame's JSON body.
func DecodePayload(payload []byte) (Event, error) {
	var frame wireFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return nil, fmt.Errorf("decode event payload: %w", err)
	}
	switch {
	case frame.Error != nil:
		return Failure{Message: *frame.Error}, nil
	case frame.Complete:
		return Complete{
			TotalPosts:    frame.TotalPosts,
			NewPosts:      frame.NewPosts,
			ExistingPosts: frame.ExistingPosts,
		}, nil
	case frame.Message != nil:
		percent := 0
		if frame.Progress != nil {
			percent = *frame.Progress
		}
		return Progress{Message: *frame.Message, Percent: percent}, nil
	default:
		return nil, fmt.Errorf("event payload has no known fields")
	}
}

// ReadTerminal scans an event stream and returns the first terminal event.
// Frames that fail to parse are skipped. onProgress, when set, sees every
// intermediate Progress event.
func ReadTerminal(r io.Reader, onProgress func(Progress)) (Event, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data bytes.Buffer
	flush := func() (Event, bool) {
		if data.Len() == 0 {
			return nil, false
		}
		ev, err := DecodePayload(data.Bytes())
		data.Reset()
		if err != nil {
			return nil, false
		}
		if p, ok := ev.(Progress); ok {
			if onProgress != nil {
				onProgress(p)
			}
			return nil, false
		}
		return ev, true
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if ev, ok := flush(); ok {
				return ev, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if value, found := strings.CutPrefix(line, "data:"); found {
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(value, " "))
		}
	}
	if ev, ok := flush(); ok {
		return ev, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read event stream: %w", err)
	}
	return nil, ErrNoTerminal
}
