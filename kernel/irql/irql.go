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

// Package irql models the priority side of the simulated kernel: interrupt
// request levels, per-processor state, spinlocks and the global dispatcher
// lock. All code that mutates vector routing runs pinned to a processor
// with the dispatcher lock held.
package irql

import (
	"log"
	"runtime"
	"sync"
	"sync/atomic"
)

// Level is an interrupt request level. Higher levels preempt lower ones.
type Level uint8

const (
	Passive  Level = 0
	APC      Level = 1
	Dispatch Level = 2

	// Levels 3..26 belong to device interrupts.

	Profile Level = 27
	Clock   Level = 28
	IPI     Level = 29
	Power   Level = 30
	High    Level = 31
)

// CycleCounter reads a monotonic processor cycle counter. Implementations
// must be safe to call from any goroutine.
type CycleCounter interface {
	Cycles() uint64
}

// Processor is the control block of one simulated logical processor.
//
// The embedded mutex is the processor's execution slot: whoever holds it
// is "running on" the processor. Interrupt delivery and affinity pinning
// both acquire it, which is what serializes vector mutation against
// dispatch on the owning processor.
type Processor struct {
	sync.Mutex

	// IsrTime accumulates cycles spent in interrupt service routines on
	// this processor. Updated lossily by the dispatch runtime while the
	// execution slot is held; used to subtract nested interrupt time
	// from ISR latency measurements.
	IsrTime uint64

	index int
	level Level
}

func (p *Processor) Index() int {
	return p.index
}

func (p *Processor) Level() Level {
	return p.level
}

// Raise moves the processor to a higher (or equal) level and returns the
// previous one.
func (p *Processor) Raise(to Level) Level {
	old := p.level
	if to < old {
		log.Panicf("irql: raise from %d to lower level %d", old, to)
	}
	p.level = to
	return old
}

// Lower returns the processor to a lower (or equal) level.
func (p *Processor) Lower(to Level) {
	if to > p.level {
		log.Panicf("irql: lower from %d to higher level %d", p.level, to)
	}
	p.level = to
}

// SpinLock is a non-recursive busy-wait lock. The caller is expected to
// have raised to the appropriate level before acquiring.
type SpinLock struct {
	owner uint32 // 1 + index of the holding processor, 0 when free
}

func (l *SpinLock) Lock(p *Processor) {
	id := uint32(p.index) + 1
	for !atomic.CompareAndSwapUint32(&l.owner, 0, id) {
		if atomic.LoadUint32(&l.owner) == id {
			log.Panicf("irql: recursive spinlock acquisition on processor %d", p.index)
		}
		runtime.Gosched()
	}
}

func (l *SpinLock) Unlock(p *Processor) {
	id := uint32(p.index) + 1
	if !atomic.CompareAndSwapUint32(&l.owner, id, 0) {
		log.Panicf("irql: spinlock released by processor %d without ownership", p.index)
	}
}

// System holds the processors and the dispatcher lock that serializes all
// vector-table mutation system wide.
type System struct {
	procs []Processor
	lock  SpinLock
	tsc   CycleCounter
}

// NewSystem creates numProcessors simulated processors at passive level.
// tsc may be nil when the host has no usable cycle counter.
func NewSystem(numProcessors int, tsc CycleCounter) *System {
	s := &System{procs: make([]Processor, numProcessors), tsc: tsc}
	for i := range s.procs {
		s.procs[i].index = i
	}
	return s
}

func (s *System) NumProcessors() int {
	return len(s.procs)
}

func (s *System) Processor(index int) *Processor {
	return &s.procs[index]
}

// CycleCounter returns the system cycle counter, or nil if none exists.
func (s *System) CycleCounter() CycleCounter {
	return s.tsc
}

// PinTo pins the calling goroutine to the given processor and returns its
// control block together with a function restoring the previous affinity.
// The restore function must be called exactly once.
func (s *System) PinTo(index int) (*Processor, func()) {
	p := &s.procs[index]
	p.Lock()
	return p, p.Unlock
}

// LockDispatcher raises the pinned processor to dispatch level and takes
// the global dispatcher lock. The returned level is passed back to
// UnlockDispatcher. The lock must never be held across a blocking call.
func (s *System) LockDispatcher(p *Processor) Level {
	old := p.Raise(Dispatch)
	s.lock.Lock(p)
	return old
}

func (s *System) UnlockDispatcher(p *Processor, old Level) {
	s.lock.Unlock(p)
	p.Lower(old)
}
