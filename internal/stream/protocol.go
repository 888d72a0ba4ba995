package stream

import (
	"encoding/json"
	"fmt"

	"github.com/dgnsrekt/chatsync/internal/model"
)

const (
	actionAuthChallenge = "authentication_challenge"
	actionUserTyping    = "user_typing"
)

// outboundMessage is a client-to-server action frame.
type outboundMessage struct {
	Seq    int64          `json:"seq"`
	Action string         `json:"action"`
	Data   map[string]any `json:"data,omitempty"`
}

// inboundMessage covers both server events and replies to client actions.
type inboundMessage struct {
	model.Event
	Status   string `json:"status,omitempty"`
	SeqReply int64  `json:"seq_reply,omitempty"`
}

func buildAction(seq int64, action string, data map[string]any) ([]byte, error) {
	b, err := json.Marshal(outboundMessage{Seq: seq, Action: action, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", action, err)
	}
	return b, nil
}

// parseInbound decodes a server frame. Replies have no event tag and
// return a nil event.
func parseInbound(data []byte) (*model.Event, error) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal inbound message: %w", err)
	}
	if msg.Event.Event == "" {
		return nil, nil
	}
	ev := msg.Event
	return &ev, nil
}
