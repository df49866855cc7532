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

// Package interrupt implements the kernel interrupt object: registration
// of device service routines against hardware vectors, exclusive and
// chained vector ownership, the dispatch runtime invoked on delivery, and
// the ISR latency watchdog.
package interrupt

import (
	"log"
	"sync/atomic"

	"github.com/osterlund/virtualint/kernel/hal"
	"github.com/osterlund/virtualint/kernel/irql"
)

// ServiceRoutine is a device interrupt handler. It reports whether the
// device claimed the interrupt.
type ServiceRoutine func(i *Object, context interface{}) bool

// Debugger is an attached interactive debugger. The watchdog breaks into
// it when a service routine overruns its time limit.
type Debugger interface {
	Break()
}

// bugCheck is the fatal error path for conditions where continuing would
// corrupt vector routing. Tests recover the panic.
var bugCheck = func(format string, v ...interface{}) {
	log.Panicf(format, v...)
}

var nextObjectID uint32

// Kernel is the interrupt subsystem of one simulated machine.
type Kernel struct {
	hal hal.Controller
	sys *irql.System

	isrCycleLimit uint64 // watchdog threshold, accessed atomically
	timeLimitUS   uint32
	calibration   *calibration
	debugger      Debugger
}

func NewKernel(ctrl hal.Controller, sys *irql.System) *Kernel {
	return &Kernel{hal: ctrl, sys: sys, isrCycleLimit: cycleLimitDisabled}
}

// SetDebugger attaches an interactive debugger. Pass nil to detach.
func (k *Kernel) SetDebugger(d Debugger) {
	k.debugger = d
}

// Object represents one registered device interrupt handler. Storage is
// supplied by the caller; the object must not be copied after Initialize
// and must not be released while connected.
type Object struct {
	kernel  *Kernel
	routine ServiceRoutine
	context interface{}

	spinLock   irql.SpinLock
	actualLock *irql.SpinLock

	vector           int
	level            irql.Level
	synchronizeLevel irql.Level
	mode             hal.Mode
	shareVector      bool
	processor        int
	floatingSave     bool
	connected        bool

	next, prev *Object
	tramp      Trampoline
	id         uint32

	// Interrupt storm diagnostics, reset on first dispatch.
	tickCount     uint32
	dispatchCount uint32
}

func (i *Object) Vector() int {
	return i.vector
}

func (i *Object) Mode() hal.Mode {
	return i.mode
}

func (i *Object) Connected() bool {
	return i.connected
}

// Stats returns the dispatch count and the cycle timestamp recorded at
// first dispatch, for storm-rate estimation.
func (i *Object) Stats() (dispatches, firstTick uint32) {
	return i.dispatchCount, i.tickCount
}

// Initialize fills in an interrupt object and patches its private copy of
// the dispatch template with the object's own identity. It has no
// hardware side effects and never fails; the object is left unconnected.
//
// lock may be nil, in which case the object synchronizes on a lock of its
// own. When supplied, the caller retains ownership of the lock and must
// keep it alive while the object is in use.
func (k *Kernel) Initialize(i *Object, routine ServiceRoutine, context interface{}, lock *irql.SpinLock,
	vector int, level, synchronizeLevel irql.Level, mode hal.Mode, shareVector bool, processor int, floatingSave bool) {

	i.kernel = k
	i.routine = routine
	i.context = context

	if lock != nil {
		i.actualLock = lock
	} else {
		i.spinLock = irql.SpinLock{}
		i.actualLock = &i.spinLock
	}

	i.vector = vector
	i.level = level
	i.synchronizeLevel = synchronizeLevel
	i.mode = mode
	i.shareVector = shareVector
	i.processor = processor
	i.floatingSave = floatingSave

	i.tickCount = ^uint32(0)
	i.dispatchCount = ^uint32(0)

	i.id = atomic.AddUint32(&nextObjectID, 1)
	i.tramp.init(i)
	k.hal.SweepCache()

	i.connected = false
}

// Connect attaches an initialized interrupt object to its vector. It
// reports false when the parameters are invalid, the object is already
// connected, or the vector's occupant cannot be shared with.
func (k *Kernel) Connect(i *Object) bool {
	if i.level > irql.High ||
		i.processor < 0 || i.processor >= k.sys.NumProcessors() ||
		i.synchronizeLevel < i.level ||
		i.floatingSave { // no floating state save on this architecture
		return false
	}

	cpu, revert := k.sys.PinTo(i.processor)
	old := k.sys.LockDispatcher(cpu)

	connected := false
	enableFailed := false

	if !i.connected {
		di := k.vectorInfo(i.vector)

		switch {
		case di.typ == noConnect:
			connected = true
			i.connected = true
			i.initChain()
			k.bind(i, normalConnect)

			if !k.hal.EnableLine(i.vector, i.level, i.mode) {
				enableFailed = true
			}

		case di.typ != unknownConnect &&
			i.shareVector && di.interrupt.shareVector &&
			di.interrupt.mode == i.mode:

			// Occupant is shareable, so are we, and the modes match.
			// Move the occupant to chained dispatch if it is not there
			// already and join the tail of its chain.
			connected = true
			i.connected = true

			if di.typ != chainConnect {
				k.bind(di.interrupt, chainConnect)
			}
			i.appendChain(di.interrupt)
		}
	}

	k.sys.UnlockDispatcher(cpu, old)
	revert()

	if connected && enableFailed {
		// The line could not be enabled. Tear the connection back down
		// so no partial state survives.
		log.Printf("interrupt: platform refused to enable vector %#x", i.vector)
		k.Disconnect(i)
		connected = false
	}
	return connected
}

// Disconnect detaches a connected interrupt object from its vector and
// reports whether it was connected.
func (k *Kernel) Disconnect(i *Object) bool {
	cpu, revert := k.sys.PinTo(i.processor)
	old := k.sys.LockDispatcher(cpu)

	connected := i.connected
	if connected {
		di := k.vectorInfo(i.vector)

		if di.typ == chainConnect {
			head := di.interrupt
			if head == i {
				// Removing the chain head: promote the next member and
				// re-aim the vector at it before unlinking.
				head = i.next
				k.bind(head, chainConnect)
			}
			i.removeChain()

			// A chain of one collapses back to exclusive dispatch.
			if head.aloneInChain() {
				k.bind(head, normalConnect)
			}
		} else {
			// Last object on the vector: quiesce the line, then point
			// the vector back at the unexpected-interrupt stub.
			k.hal.DisableLine(i.vector, i.level)
			k.bind(i, noConnect)
		}

		k.hal.SweepCache()
		i.connected = false
	}

	k.sys.UnlockDispatcher(cpu, old)
	revert()
	return connected
}
