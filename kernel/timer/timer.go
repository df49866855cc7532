/*
Copyright (c) 2019-2021 Andreas T Jonsson

This software is provided 'as-is', without any express or implied
warranty. In no event will the authors be held liable for any damages
arising from the use of this software.

Permission is granted to anyone to use this software for any purpose,
including commercial applications, and to alter it and redistribute it
freely, subject to the following restrictions:

1. The origin of this software must not be misrepresented; you must not
   claim that you wrote the original software. If you use this software
   in a product, an acknowledgment in the product documentation would be
   appreciated but is not required.
2. Altered source versions must be plainly marked as such, and must not be
   misrepresented as being the original software.
3. This notice may not be removed or altered from any source distribution.
*/

// Package timer provides the deferred callback timer used by the interrupt
// core's watchdog calibration.
package timer

import (
	"sync"
	"time"
)

// Timer runs a callback once after a due time and then periodically until
// canceled.
type Timer struct {
	mu       sync.Mutex
	stop     chan struct{}
	canceled bool
}

// AfterPeriodic schedules fn after due, then every period. fn runs on its
// own goroutine and may call Cancel on the returned timer.
func AfterPeriodic(due, period time.Duration, fn func()) *Timer {
	t := &Timer{stop: make(chan struct{})}
	go t.run(due, period, fn)
	return t
}

func (t *Timer) run(due, period time.Duration, fn func()) {
	first := time.NewTimer(due)
	defer first.Stop()

	select {
	case <-first.C:
	case <-t.stop:
		return
	}
	fn()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fn()
		case <-t.stop:
			return
		}
	}
}

// Cancel stops the timer. It is safe to call multiple times and from
// within the callback.
func (t *Timer) Cancel() {
	t.mu.Lock()
	if !t.canceled {
		t.canceled = true
		close(t.stop)
	}
	t.mu.Unlock()
}
