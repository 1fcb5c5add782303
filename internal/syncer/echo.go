package syncer

import "time"

// echoTracker counts, per object id, how many of this client's own writes
// are still expected back on the change feed. Each expectation expires
// after ttl so a write that never echoes cannot hide a later remote change
// forever. Callers hold the engine lock.
type echoTracker struct {
	ttl      time.Duration
	deadline map[string][]time.Time
}

func newEchoTracker(ttl time.Duration) *echoTracker {
	return &echoTracker{ttl: ttl, deadline: make(map[string][]time.Time)}
}

func (t *echoTracker) expect(id string, now time.Time) {
	t.deadline[id] = append(t.deadline[id], now.Add(t.ttl))
}

// refresh extends the newest expectation for id, if any.
func (t *echoTracker) refresh(id string, now time.Time) {
	if d := t.deadline[id]; len(d) > 0 {
		d[len(d)-1] = now.Add(t.ttl)
	}
}

// consume reports whether an event for id is an echo, using up one
// expectation if so.
func (t *echoTracker) consume(id string, now time.Time) bool {
	t.expire(id, now)
	d := t.deadline[id]
	if len(d) == 0 {
		return false
	}
	if len(d) == 1 {
		delete(t.deadline, id)
	} else {
		t.deadline[id] = d[1:]
	}
	return true
}

func (t *echoTracker) pending(id string, now time.Time) int {
	t.expire(id, now)
	return len(t.deadline[id])
}

func (t *echoTracker) expire(id string, now time.Time) {
	d := t.deadline[id]
	i := 0
	for i < len(d) && !now.Before(d[i]) {
		i++
	}
	switch {
	case i == 0:
	case i == len(d):
		delete(t.deadline, id)
	default:
		t.deadline[id] = d[i:]
	}
}

// sweep drops every expired expectation.
func (t *echoTracker) sweep(now time.Time) {
	for id := range t.deadline {
		t.expire(id, now)
	}
}

func (t *echoTracker) clear() {
	t.deadline = make(map[string][]time.Time)
}
