package routing

import (
	"github.com/charmbracelet/log"

	"moatbus/internal/message"
)

// Sink receives every message a bus.Handler accepted, decoupled from
// the concrete Redis/MQTT implementations so Router can be exercised
// without either dependency in tests.
type Sink interface {
	Record(source, code uint8, body []byte) error
}

// Publisher mirrors messages onto a pub/sub transport.
type Publisher interface {
	Publish(source, code uint8, body []byte) error
}

// Router is the Process subscriber spec.md §1 calls out as outside the
// handler's own responsibility: it fans every accepted message out to
// a Redis-backed Sink and an MQTT Publisher.
type Router struct {
	sink      Sink
	publisher Publisher
	log       *log.Logger
}

// NewRouter wires sink and publisher together. Either may be nil to
// disable that destination.
func NewRouter(sink Sink, publisher Publisher, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.Default()
	}
	return &Router{sink: sink, publisher: publisher, log: logger}
}

// Process implements bus.Callbacks.Process's accept/drop contract,
// always accepting (routing is observational, never flow control) while
// fanning the message out to every configured destination.
func (r *Router) Process(msg *message.Message) bool {
	body := msg.Bytes()

	if r.sink != nil {
		if err := r.sink.Record(msg.Source, msg.Code, body); err != nil {
			r.log.Error("routing: redis record failed", "source", msg.Source, "code", msg.Code, "err", err)
		}
	}
	if r.publisher != nil {
		if err := r.publisher.Publish(msg.Source, msg.Code, body); err != nil {
			r.log.Error("routing: mqtt publish failed", "source", msg.Source, "code", msg.Code, "err", err)
		}
	}
	return true
}
