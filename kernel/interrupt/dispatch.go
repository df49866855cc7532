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
	"log"

	"github.com/osterlund/virtualint/kernel/hal"
	"github.com/osterlund/virtualint/kernel/irql"
)

// Invoke runs the trampoline the way hardware delivery would: raise to
// the interrupt's request level, branch to the patched dispatch stage,
// and lower back on return. The caller must hold the owning processor's
// execution slot.
func (e Entry) Invoke(cpu *irql.Processor) {
	i := e.tramp.owner
	k := i.kernel

	old := cpu.Level()
	if i.level > old {
		cpu.Raise(i.level)
	}

	switch target := e.tramp.branchTarget(); target {
	case chainedDispatchAddr, chainedDispatch2Addr:
		k.chainedDispatch(cpu, i)
	case interruptDispatchAddr, floatingDispatchAddr, interruptDispatch2Addr:
		k.interruptDispatch(cpu, i)
	default:
		bugCheck("interrupt: vector %#x armed with unpatched dispatch %#x", i.vector, target)
	}

	cpu.Lower(old)
}

// interruptDispatch services an exclusively owned vector. The synchronize
// level only ever raises; a member already running above it stays put.
func (k *Kernel) interruptDispatch(cpu *irql.Processor, i *Object) {
	i.countDispatch(cpu)

	old := cpu.Level()
	if i.synchronizeLevel > old {
		cpu.Raise(i.synchronizeLevel)
	}

	start, higher, timed := k.beginTiming(cpu)

	i.actualLock.Lock(cpu)
	i.routine(i, i.context)
	i.actualLock.Unlock(cpu)

	k.endTiming(cpu, i, start, higher, timed)

	cpu.Lower(old)
}

// chainedDispatch polls every member of a shared vector's chain. Handled
// results are ORed together; a level-triggered claimant ends the walk at
// once since the line stays asserted until serviced and further polling
// could mis-attribute the next device's assertion. Edge-triggered chains
// re-walk from the head after a productive pass because coinciding edges
// can under-service in a single pass, and stop after the first pass in
// which nobody claims. A full unclaimed pass on a level-triggered chain
// means an asserted line no device answers for, which is fatal.
func (k *Kernel) chainedDispatch(cpu *irql.Processor, head *Object) {
	handled := false
	i := head

	for {
		i.countDispatch(cpu)

		old := cpu.Level()
		if i.synchronizeLevel > old {
			cpu.Raise(i.synchronizeLevel)
		}

		start, higher, timed := k.beginTiming(cpu)

		i.actualLock.Lock(cpu)
		h := i.routine(i, i.context)
		i.actualLock.Unlock(cpu)

		k.endTiming(cpu, i, start, higher, timed)

		cpu.Lower(old)

		handled = handled || h
		if h && i.mode == hal.LevelSensitive {
			return
		}

		if i.next == head {
			if !handled {
				if head.mode == hal.LevelSensitive {
					bugCheck("interrupt: no claimant for asserted vector %#x", head.vector)
				}
				return
			}
			handled = false
		}
		i = i.next
	}
}

// countDispatch maintains the storm diagnostics, resetting them on the
// first pass through the dispatch runtime.
func (i *Object) countDispatch(cpu *irql.Processor) {
	if i.dispatchCount == ^uint32(0) {
		i.dispatchCount = 0
		i.tickCount = 0
		if tsc := i.kernel.sys.CycleCounter(); tsc != nil {
			i.tickCount = uint32(tsc.Cycles())
		}
	}
	i.dispatchCount++
}

// beginTiming samples the cycle counter and the processor's accumulated
// ISR time before a service routine runs. timed is false when the host
// has no cycle counter.
func (k *Kernel) beginTiming(cpu *irql.Processor) (start, higher uint64, timed bool) {
	tsc := k.sys.CycleCounter()
	if tsc == nil {
		return 0, 0, false
	}
	return tsc.Cycles(), cpu.IsrTime, true
}

// endTiming charges the routine's own cost, excluding time consumed by
// interrupts that nested on top of it, and flags overruns. The IsrTime
// update is lossy on purpose; it is per processor and runs above dispatch
// level.
func (k *Kernel) endTiming(cpu *irql.Processor, i *Object, start, higher uint64, timed bool) {
	if !timed {
		return
	}
	elapsed := k.sys.CycleCounter().Cycles() - start
	elapsed -= cpu.IsrTime - higher

	if elapsed > k.cycleLimit() {
		log.Printf("interrupt: ISR time limit exceeded (vector %#x)", i.vector)
		if k.debugger != nil {
			k.debugger.Break()
		}
	}
	cpu.IsrTime += elapsed
}
