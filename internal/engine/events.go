package engine

import "fmt"

// Event categories.
const (
	CategoryTick     = "tick"
	CategoryWaypoint = "waypoint"
	CategoryAlert    = "alert"
	CategoryOperator = "operator"
)

const subscriberBuffer = 64

// Event is a notable occurrence in the simulation.
type Event struct {
	Tick        uint64       `json:"tick"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	Metrics     *TickMetrics `json:"metrics,omitempty"`
}

func newEvent(category, format string, args ...any) Event {
	return Event{Category: category, Description: fmt.Sprintf(format, args...)}
}

// Subscribe registers a listener for events. Slow listeners drop events
// rather than stall the tick.
func (s *Simulation) Subscribe() (int, <-chan Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.subs == nil {
		s.subs = make(map[int]chan Event)
	}
	s.nextSubID++
	ch := make(chan Event, subscriberBuffer)
	s.subs[s.nextSubID] = ch
	return s.nextSubID, ch
}

// Unsubscribe removes a listener and closes its channel.
func (s *Simulation) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

// EmitEvent fans an event out to every subscriber.
func (s *Simulation) EmitEvent(e Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
