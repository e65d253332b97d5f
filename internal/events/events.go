package events

import (
	"encoding/json"
	"time"

	"econstats-engine/internal/domain"
)

// Event types published while a pipeline runs.
const (
	TypePing        = "ping"
	TypeRunStarted  = "run_started"
	TypeUnit        = "unit"
	TypeRunFinished = "run_finished"
)

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func MakeEvent(reqID, typ string, v int, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type:      typ,
		Version:   v,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}

type RunStarted struct {
	RunID    string `json:"run_id"`
	Pipeline string `json:"pipeline"`
}

type Unit struct {
	RunID string `json:"run_id"`
	domain.UnitResult
}

type RunFinished struct {
	RunID    string `json:"run_id"`
	Pipeline string `json:"pipeline"`
	Status   string `json:"status"`
	Summary  string `json:"summary"`
}
