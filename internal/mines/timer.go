package mines

import (
	"time"

	"github.com/sirupsen/logrus"
)

type ListenerID uint64

type listener struct {
	id ListenerID
	fn func()
}

// ticker is one run of the notification goroutine. A board has at most one
// live ticker; a stopped ticker is never restarted.
type ticker struct {
	start time.Time
	stop  chan struct{}
	done  chan struct{}
}

// Time returns the whole seconds elapsed since the first reveal, frozen once
// the game is over.
func (b *Board) Time() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.time()
}

func (b *Board) time() int {
	if b.stopped {
		return b.finalTime
	}
	if b.start.IsZero() {
		return 0
	}
	return int(b.clock.Since(b.start) / time.Second)
}

// AddListener registers fn to be called once per second while a game is in
// progress. fn gets no arguments; it is expected to read [Board.Time].
func (b *Board) AddListener(fn func()) ListenerID {
	b.mu.Lock()
	defer b.unlock()
	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, listener{id, fn})
	b.startScheduler()
	return id
}

// RemoveListener unregisters a listener. Removing the last one stops the
// notifications. Unknown ids are ignored.
func (b *Board) RemoveListener(id ListenerID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, l := range b.listeners {
		if l.id == id {
			b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
			break
		}
	}
	if len(b.listeners) == 0 {
		// not retired: this may run on the ticker goroutine itself
		b.stopScheduler()
	}
}

func (b *Board) startTimer() {
	b.start = b.clock.Now()
	b.startScheduler()
}

func (b *Board) stopTimer() {
	b.finalTime = b.time()
	b.stopped = true
	b.retire(b.stopScheduler())
}

func (b *Board) startScheduler() {
	if b.ticker != nil || len(b.listeners) == 0 ||
		b.start.IsZero() || b.done || b.stopped {
		return
	}
	t := &ticker{
		start: b.start,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	b.ticker = t
	go b.run(t)
}

func (b *Board) stopScheduler() *ticker {
	t := b.ticker
	if t == nil {
		return nil
	}
	close(t.stop)
	b.ticker = nil
	return t
}

func (b *Board) retire(t *ticker) {
	if t != nil {
		b.retired = append(b.retired, t)
	}
}

// untilNextSecond returns the delay to the next whole second of elapsed time,
// so ticks do not drift.
func untilNextSecond(elapsed time.Duration) time.Duration {
	return elapsed.Truncate(time.Second) + time.Second - elapsed
}

func (b *Board) run(t *ticker) {
	defer close(t.done)
	for {
		timer := b.clock.NewTimer(untilNextSecond(b.clock.Since(t.start)))
		select {
		case <-t.stop:
			timer.Stop()
			return
		case <-timer.Chan():
		}

		listeners, ok := b.current(t)
		if !ok {
			return
		}
		for _, l := range listeners {
			b.notify(l)
		}
	}
}

// current returns a copy of the listeners if t is still the board's ticker.
func (b *Board) current(t *ticker) ([]listener, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ticker != t {
		return nil, false
	}
	return append([]listener(nil), b.listeners...), true
}

func (b *Board) notify(l listener) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithFields(logrus.Fields{
				"listener": l.id,
				"panic":    r,
			}).Error("timer listener panicked")
		}
	}()
	l.fn()
}
