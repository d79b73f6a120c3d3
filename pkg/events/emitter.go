package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/samber/lo"

	"github.com/fystack/contract-bridge/internal/caller"
	"github.com/fystack/contract-bridge/pkg/infra"
)

const (
	TypeLog   = "log"
	TypeError = "error"
)

// Event is the envelope published for every relayed item.
type Event struct {
	Type      string `json:"type"`
	Contract  string `json:"contract"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// LogPayload is the JSON form of a contract log.
type LogPayload struct {
	Event       string   `json:"event"`
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	BlockNumber *uint64  `json:"block_number,omitempty"`
	TxHash      string   `json:"tx_hash,omitempty"`
	Removed     bool     `json:"removed"`
}

type Emitter interface {
	EmitLog(contract, event string, log *caller.EventLog) error
	EmitError(contract string, err error) error
	Emit(event Event) error
	Close()
}

type emitter struct {
	publisher     infra.Publisher
	subjectPrefix string
	now           func() time.Time
}

func NewEmitter(publisher infra.Publisher, subjectPrefix string) Emitter {
	return &emitter{publisher: publisher, subjectPrefix: subjectPrefix, now: time.Now}
}

func NewLogPayload(event string, log *caller.EventLog) LogPayload {
	p := LogPayload{
		Event:       event,
		Address:     hexutil.Encode(log.Address[:]),
		Topics:      lo.Map(log.Topics, func(t [32]byte, _ int) string { return hexutil.Encode(t[:]) }),
		Data:        hexutil.Encode(log.Data),
		BlockNumber: log.BlockNumber,
		Removed:     log.Removed != nil && *log.Removed,
	}
	if log.TransactionHash != nil {
		p.TxHash = hexutil.Encode(log.TransactionHash[:])
	}
	return p
}

func (e *emitter) EmitLog(contract, event string, log *caller.EventLog) error {
	return e.Emit(Event{
		Type:      TypeLog,
		Contract:  contract,
		Data:      NewLogPayload(event, log),
		Timestamp: e.now().UTC().Unix(),
	})
}

func (e *emitter) EmitError(contract string, err error) error {
	payload := map[string]string{}
	if err != nil {
		payload["message"] = err.Error()
	}
	return e.Emit(Event{
		Type:      TypeError,
		Contract:  contract,
		Data:      payload,
		Timestamp: e.now().UTC().Unix(),
	})
}

// Emit publishes to <prefix>.<contract>.
func (e *emitter) Emit(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return e.publisher.Publish(fmt.Sprintf("%s.%s", e.subjectPrefix, event.Contract), data)
}

func (e *emitter) Close() {
	if e.publisher != nil {
		e.publisher.Close()
	}
}
