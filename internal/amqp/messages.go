package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"fintrack/internal/core"
)

// messageVersion is bumped when ChangeMessage changes incompatibly.
const messageVersion = 1

// ChangeMessage is the wire form of a core.ChangeEvent.
type ChangeMessage struct {
	Version   int              `json:"version"`
	Event     core.ChangeEvent `json:"event"`
	Timestamp time.Time        `json:"timestamp"`
}

func NewChangeMessage(ev core.ChangeEvent) *ChangeMessage {
	return &ChangeMessage{Version: messageVersion, Event: ev, Timestamp: time.Now()}
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes a message and rejects ones this build cannot read.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Version != messageVersion {
		return nil, errors.New("unsupported change message version")
	}
	if msg.Event.OwnerID == "" || !msg.Event.Kind.IsValid() {
		return nil, errors.New("change message missing owner or kind")
	}
	return &msg, nil
}
