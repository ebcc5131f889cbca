package pipeline

import (
	"sync/atomic"
	"time"
)

// ProgressFactory hands out progress handles whose state is broadcast on
// the event bus.
type ProgressFactory struct {
	bus    *EventBus
	nextID atomic.Uint64
}

// NewProgressFactory binds a factory to a bus.
func NewProgressFactory(bus *EventBus) *ProgressFactory {
	return &ProgressFactory{bus: bus}
}

// Start creates a handle with a label and a total; total may be zero
// when unknown.
func (f *ProgressFactory) Start(label string, total int64) *ProgressHandle {
	h := &ProgressHandle{
		id:    f.nextID.Add(1),
		label: label,
		bus:   f.bus,
		start: time.Now(),
	}
	h.total.Store(total)
	h.publish(false)
	return h
}

// ProgressHandle tracks position/total of one long-running job. Safe for
// concurrent Inc calls from many workers.
type ProgressHandle struct {
	id       uint64
	label    string
	bus      *EventBus
	start    time.Time
	position atomic.Int64
	total    atomic.Int64
	finished atomic.Bool
}

// ID returns the identifier used in progress events.
func (h *ProgressHandle) ID() uint64 {
	return h.id
}

// Inc advances the position and broadcasts the new state.
func (h *ProgressHandle) Inc(n int64) {
	h.position.Add(n)
	h.publish(false)
}

// SetTotal replaces the total.
func (h *ProgressHandle) SetTotal(total int64) {
	h.total.Store(total)
}

// Finish marks the job done and broadcasts the final state.
func (h *ProgressHandle) Finish() {
	if h.finished.Swap(true) {
		return
	}
	h.publish(true)
}

func (h *ProgressHandle) publish(done bool) {
	if h.bus == nil {
		return
	}
	pos := h.position.Load()
	total := h.total.Load()
	elapsed := time.Since(h.start)

	var eta time.Duration
	if pos > 0 && total > pos {
		eta = time.Duration(float64(elapsed) / float64(pos) * float64(total-pos))
	}
	h.bus.Publish(Event{
		Kind:       EventProgress,
		Message:    h.label,
		ProgressID: h.id,
		Position:   pos,
		Total:      total,
		ElapsedMS:  elapsed.Milliseconds(),
		ETAMS:      eta.Milliseconds(),
		Done:       done,
	})
}
