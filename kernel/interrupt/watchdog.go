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

package interrupt

import (
	"sync/atomic"
	"time"

	"github.com/osterlund/virtualint/kernel/timer"
)

// The watchdog threshold starts at the maximum representable value so the
// overrun check cannot fire before calibration completes. The second
// sentinel marks that the first calibration sample has been taken.
const (
	cycleLimitDisabled = ^uint64(0)
	cycleLimitSampling = ^uint64(0) - 1

	calibrationInterval = 10 * time.Second
)

// calibration is alive only during the one-shot calibration sequence.
type calibration struct {
	timer *timer.Timer
	start uint64
}

// SetISRTimeLimit configures the service routine time limit in
// microseconds. Zero disables the watchdog. Set once, before
// StartWatchdog.
func (k *Kernel) SetISRTimeLimit(microseconds uint32) {
	k.timeLimitUS = microseconds
}

// ISRCycleLimit returns the active watchdog threshold in cycles.
func (k *Kernel) ISRCycleLimit() uint64 {
	return atomic.LoadUint64(&k.isrCycleLimit)
}

func (k *Kernel) cycleLimit() uint64 {
	return atomic.LoadUint64(&k.isrCycleLimit)
}

// StartWatchdog begins the one-shot threshold calibration: two callbacks
// ten seconds apart sample the cycle counter, and the observed delta is
// scaled to the configured microsecond limit. Nothing happens when no
// limit is configured or the host lacks a cycle counter.
func (k *Kernel) StartWatchdog() {
	if k.timeLimitUS == 0 || k.sys.CycleCounter() == nil {
		return
	}
	c := &calibration{}
	k.calibration = c
	c.timer = timer.AfterPeriodic(calibrationInterval, calibrationInterval, k.calibrate)
}

func (k *Kernel) calibrate() {
	c := k.calibration
	if c == nil {
		return
	}
	tsc := k.sys.CycleCounter()

	if atomic.LoadUint64(&k.isrCycleLimit) == cycleLimitDisabled {
		// First pass: record the starting cycle count.
		c.start = tsc.Cycles()
		atomic.StoreUint64(&k.isrCycleLimit, cycleLimitSampling)
		return
	}

	// Second pass: the delta is the cycle count of the sampling interval.
	// A large interval keeps the scaling error small.
	delta := tsc.Cycles() - c.start
	if c.timer != nil {
		c.timer.Cancel()
	}
	k.calibration = nil

	delta *= uint64(k.timeLimitUS)
	delta /= 10 * 1000 * 1000
	atomic.StoreUint64(&k.isrCycleLimit, delta)
}
