package relay

import (
	"encoding/json"
	"errors"
	"fmt"

	"linkpage/internal/event"
)

// Frame labels defined by the relay protocol.
const (
	labelReq    = "REQ"
	labelClose  = "CLOSE"
	labelEvent  = "EVENT"
	labelEOSE   = "EOSE"
	labelOK     = "OK"
	labelNotice = "NOTICE"
	labelClosed = "CLOSED"
)

func encodeReq(subID string, f event.Filter) ([]byte, error) {
	return json.Marshal([]any{labelReq, subID, f})
}

func encodeClose(subID string) ([]byte, error) {
	return json.Marshal([]any{labelClose, subID})
}

func encodeEvent(ev event.Event) ([]byte, error) {
	return json.Marshal([]any{labelEvent, ev})
}

// frame is a relay message with its label decoded and the remaining
// positional arguments left raw.
type frame struct {
	label string
	args  []json.RawMessage
}

func decodeFrame(data []byte) (frame, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return frame{}, fmt.Errorf("malformed frame: %w", err)
	}
	if len(parts) == 0 {
		return frame{}, errors.New("empty frame")
	}
	var label string
	if err := json.Unmarshal(parts[0], &label); err != nil {
		return frame{}, fmt.Errorf("frame label: %w", err)
	}
	return frame{label: label, args: parts[1:]}, nil
}

func (f frame) stringArg(i int) string {
	if i >= len(f.args) {
		return ""
	}
	var s string
	if err := json.Unmarshal(f.args[i], &s); err != nil {
		return ""
	}
	return s
}

func (f frame) boolArg(i int) bool {
	if i >= len(f.args) {
		return false
	}
	var b bool
	if err := json.Unmarshal(f.args[i], &b); err != nil {
		return false
	}
	return b
}

func (f frame) eventArg(i int) (event.Event, error) {
	var ev event.Event
	if i >= len(f.args) {
		return ev, errors.New("frame has no event payload")
	}
	if err := json.Unmarshal(f.args[i], &ev); err != nil {
		return ev, fmt.Errorf("frame event payload: %w", err)
	}
	return ev, nil
}
