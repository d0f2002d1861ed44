// Package events is the in-process pub/sub used to push waiting-queue
// changes to connected screens. Subscribers own an unbounded mailbox and
// drain it cooperatively.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lasercare/clinic/internal/platform/metrics"
)

// AllChannel receives every queue event.
const AllChannel = "queue:all"

// Queue event types.
const (
	TypeCheckedIn  = "patient_checked_in"
	TypeCalled     = "patient_called"
	TypeCompleted  = "patient_completed"
	TypeNoShow     = "patient_no_show"
	TypeLeft       = "patient_left"
	TypeReassigned = "patient_reassigned"
	TypePing       = "ping"
)

// Event is one queue change as seen by subscribers.
type Event struct {
	Type        string     `json:"type"`
	EntryID     *uuid.UUID `json:"entry_id,omitempty"`
	PatientName string     `json:"patient_name"`
	DoctorID    *uuid.UUID `json:"doctor_id"`
	DoctorName  string     `json:"doctor_name"`
	Position    int        `json:"position"`
	BoxNom      *string    `json:"box_nom,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// DoctorChannel is the channel of one doctor's queue, or AllChannel when
// doctorID is nil.
func DoctorChannel(doctorID *uuid.UUID) string {
	if doctorID == nil || *doctorID == uuid.Nil {
		return AllChannel
	}
	return "queue:" + doctorID.String()
}

// Mailbox buffers events for one subscriber.
type Mailbox struct {
	mu     sync.Mutex
	events []Event
	ready  chan struct{}
}

func newMailbox() *Mailbox {
	return &Mailbox{ready: make(chan struct{}, 1)}
}

func (m *Mailbox) push(ev Event) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Ready is signalled whenever events are waiting.
func (m *Mailbox) Ready() <-chan struct{} { return m.ready }

// Drain returns and clears the pending events in publish order.
func (m *Mailbox) Drain() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.events
	m.events = nil
	return out
}

// Len is the number of pending events.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// Bus maps channel names to subscriber mailboxes.
type Bus struct {
	mu       sync.RWMutex
	channels map[string]map[*Mailbox]struct{}
	now      func() time.Time
	metrics  *metrics.EventMetrics
}

func NewBus(m *metrics.EventMetrics) *Bus {
	return &Bus{
		channels: make(map[string]map[*Mailbox]struct{}),
		now:      time.Now,
		metrics:  m,
	}
}

// Subscribe returns a fresh mailbox attached to channel.
func (b *Bus) Subscribe(channel string) *Mailbox {
	mb := newMailbox()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.channels[channel] == nil {
		b.channels[channel] = make(map[*Mailbox]struct{})
	}
	b.channels[channel][mb] = struct{}{}
	return mb
}

func (b *Bus) Unsubscribe(channel string, mb *Mailbox) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.channels[channel]
	if !ok {
		return
	}
	delete(subs, mb)
	if len(subs) == 0 {
		delete(b.channels, channel)
	}
}

// Publish stamps the event and enqueues it for every subscriber of channel.
// Events on a doctor channel are mirrored to AllChannel. It returns the
// number of mailboxes reached.
func (b *Bus) Publish(channel string, ev Event) int {
	ev.Timestamp = b.now().UTC()

	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for mb := range b.channels[channel] {
		mb.push(ev)
		n++
	}
	if channel != AllChannel {
		for mb := range b.channels[AllChannel] {
			mb.push(ev)
			n++
		}
	}
	b.metrics.ObservePublished(ev.Type, n)
	return n
}

// SubscriberCount returns the number of mailboxes on channel.
func (b *Bus) SubscriberCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels[channel])
}
