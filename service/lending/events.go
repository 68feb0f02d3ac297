package lending

import (
	"log"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Ledger event names consumed by the notification/UI layer.
const (
	EventRequestCreated      = "lending.request.created"
	EventRequestApproved     = "lending.request.approved"
	EventRequestRejected     = "lending.request.rejected"
	EventRequestCollected    = "lending.request.collected"
	EventRequestUserReturned = "lending.request.user_returned"
	EventRequestReturned     = "lending.request.returned"
	EventRequestExpired      = "lending.request.expired"
	EventExpiryFlagged       = "lending.request.expiry_flagged"
)

// Event is what the ledger emits after a successful mutation. Payload is a
// loose map; subscribers decode it with DecodePayload.
type Event struct {
	Name    string
	At      time.Time
	Payload map[string]interface{}
}

// RequestPayload is the decoded shape of every request event payload.
type RequestPayload struct {
	RequestID   string  `mapstructure:"request_id"`
	ResourceID  string  `mapstructure:"resource_id"`
	RequesterID string  `mapstructure:"requester_id"`
	Quantity    int     `mapstructure:"quantity"`
	Status      string  `mapstructure:"status"`
	FineAmount  float64 `mapstructure:"fine_amount"`
}

// DecodePayload maps an event payload onto a typed struct.
func DecodePayload(e Event, out interface{}) error {
	return mapstructure.Decode(e.Payload, out)
}

// Handler receives ledger events. Handlers run synchronously after the
// transaction committed; keep them fast.
type Handler func(Event)

// Bus is a minimal in-process pub/sub for ledger events.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

func (b *Bus) Publish(name string, payload map[string]interface{}) {
	e := Event{Name: name, At: time.Now(), Payload: payload}
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("lending event handler panic on %s: %v", name, r)
				}
			}()
			h(e)
		}()
	}
}
