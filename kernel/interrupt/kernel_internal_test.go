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
	"testing"

	"github.com/osterlund/virtualint/kernel/hal"
	"github.com/osterlund/virtualint/kernel/irql"
)

// fakeController is a minimal direct-table platform for white box tests.
type fakeController struct {
	table       map[int]hal.Target
	kind        hal.DispatchKind
	enableFails bool
	sweeps      int
}

func newFakeController() *fakeController {
	return &fakeController{table: make(map[int]hal.Target), kind: hal.DirectDispatch}
}

func (f *fakeController) EnableLine(vector int, level irql.Level, mode hal.Mode) bool {
	return !f.enableFails
}

func (f *fakeController) DisableLine(vector int, level irql.Level) {
}

func (f *fakeController) DispatchSlot(vector int) hal.SlotInfo {
	return hal.SlotInfo{Kind: f.kind}
}

func (f *fakeController) VectorToIndex(vector int) int {
	return vector
}

func (f *fakeController) TableTarget(index int) hal.Target {
	if t, ok := f.table[index]; ok {
		return t
	}
	return UnexpectedStub(index)
}

func (f *fakeController) SetTableTarget(index int, t hal.Target) {
	f.table[index] = t
}

func (f *fakeController) SweepCache() {
	f.sweeps++
}

type fakeTSC struct {
	cycles uint64
}

func (f *fakeTSC) Cycles() uint64 {
	return f.cycles
}

type fakeDebugger struct {
	breaks int
}

func (f *fakeDebugger) Break() {
	f.breaks++
}

func TestCalibration(t *testing.T) {
	tsc := &fakeTSC{cycles: 1000}
	k := NewKernel(newFakeController(), irql.NewSystem(1, tsc))

	const limitUS = 250
	k.SetISRTimeLimit(limitUS)
	k.calibration = &calibration{}

	if k.ISRCycleLimit() != cycleLimitDisabled {
		t.Fatal("watchdog armed before calibration")
	}

	k.calibrate()
	if k.ISRCycleLimit() != cycleLimitSampling {
		t.Fatal("first sample did not move to sampling state")
	}

	// Ten simulated seconds at 2.5 GHz.
	const delta = 25_000_000_000
	tsc.cycles += delta
	k.calibrate()

	want := uint64(delta) * limitUS / (10 * 1000 * 1000)
	if got := k.ISRCycleLimit(); got != want {
		t.Errorf("cycle limit = %d, want %d", got, want)
	}
	if k.calibration != nil {
		t.Error("calibration state not released")
	}

	// A straggling callback after completion must be a no-op.
	k.calibrate()
	if got := k.ISRCycleLimit(); got != want {
		t.Errorf("straggler changed limit to %d", got)
	}
}

func TestWatchdogSkipped(t *testing.T) {
	t.Run("NoLimit", func(t *testing.T) {
		k := NewKernel(newFakeController(), irql.NewSystem(1, &fakeTSC{}))
		k.StartWatchdog()
		if k.calibration != nil {
			t.Error("calibration started with zero limit")
		}
	})

	t.Run("NoCycleCounter", func(t *testing.T) {
		k := NewKernel(newFakeController(), irql.NewSystem(1, nil))
		k.SetISRTimeLimit(100)
		k.StartWatchdog()
		if k.calibration != nil {
			t.Error("calibration started without a cycle counter")
		}
	})
}

func TestWatchdogOverrun(t *testing.T) {
	tsc := &fakeTSC{}
	sys := irql.NewSystem(1, tsc)
	ctrl := newFakeController()
	k := NewKernel(ctrl, sys)

	dbg := &fakeDebugger{}
	k.SetDebugger(dbg)

	// Calibrate to a threshold of 100 cycles: 10 us limit against a
	// simulated counter that advances 1e8 cycles per 10 s window.
	k.SetISRTimeLimit(10)
	k.calibration = &calibration{}
	k.calibrate()
	tsc.cycles += 100_000_000
	k.calibrate()
	if k.ISRCycleLimit() != 100 {
		t.Fatalf("unexpected threshold %d", k.ISRCycleLimit())
	}

	const vector = 0x21
	var slow Object
	k.Initialize(&slow, func(i *Object, context interface{}) bool {
		tsc.cycles += 500 // ISR burns five times the threshold
		return true
	}, nil, nil, vector, 5, 5, hal.LevelSensitive, false, 0, false)

	if !k.Connect(&slow) {
		t.Fatal("connect failed")
	}
	defer k.Disconnect(&slow)

	cpu, revert := sys.PinTo(0)
	ctrl.TableTarget(vector).(Entry).Invoke(cpu)
	revert()

	if dbg.breaks != 1 {
		t.Fatalf("debugger breaks = %d, want 1", dbg.breaks)
	}
	if cpu.IsrTime != 500 {
		t.Errorf("IsrTime = %d, want 500", cpu.IsrTime)
	}

	t.Run("NestedTimeExcluded", func(t *testing.T) {
		var nested Object
		k.Initialize(&nested, func(i *Object, context interface{}) bool {
			// Simulate 400 of the 430 cycles being consumed by a
			// higher level interrupt that nested on top of us.
			tsc.cycles += 430
			cpu.IsrTime += 400
			return true
		}, nil, nil, vector+1, 5, 5, hal.LevelSensitive, false, 0, false)

		if !k.Connect(&nested) {
			t.Fatal("connect failed")
		}
		defer k.Disconnect(&nested)

		before := dbg.breaks
		cpu, revert := sys.PinTo(0)
		ctrl.TableTarget(vector + 1).(Entry).Invoke(cpu)
		revert()

		if dbg.breaks != before {
			t.Error("nested interrupt time charged to the ISR")
		}
	})
}

func TestUnrecognizedDispatchKind(t *testing.T) {
	ctrl := newFakeController()
	ctrl.kind = hal.DispatchKind(7)
	k := NewKernel(ctrl, irql.NewSystem(1, nil))

	defer func() {
		if recover() == nil {
			t.Error("no bugcheck for unrecognized dispatch kind")
		}
	}()
	k.vectorInfo(0x30)
}

func TestUnknownTargetClassification(t *testing.T) {
	ctrl := newFakeController()
	k := NewKernel(ctrl, irql.NewSystem(1, nil))

	const vector = 0x33
	ctrl.SetTableTarget(vector, hal.Stub(0xDEADBEEF))

	di := k.vectorInfo(vector)
	if di.typ != unknownConnect {
		t.Errorf("classification %d, want unknownConnect", di.typ)
	}

	// Nobody may share with an occupant we do not understand.
	var obj Object
	k.Initialize(&obj, func(*Object, interface{}) bool { return true },
		nil, nil, vector, 5, 5, hal.LevelSensitive, true, 0, false)
	if k.Connect(&obj) {
		t.Error("connected to a vector with an unrecognized occupant")
	}
}

func TestConnectSweepsPatchedCode(t *testing.T) {
	ctrl := newFakeController()
	k := NewKernel(ctrl, irql.NewSystem(1, nil))

	var obj Object
	k.Initialize(&obj, func(*Object, interface{}) bool { return true },
		nil, nil, 0x34, 5, 5, hal.LevelSensitive, false, 0, false)
	after := ctrl.sweeps
	if after == 0 {
		t.Fatal("initialize did not sweep the patched template")
	}

	if !k.Connect(&obj) {
		t.Fatal("connect failed")
	}
	if ctrl.sweeps <= after {
		t.Error("connect re-armed the vector without a sweep")
	}

	after = ctrl.sweeps
	if !k.Disconnect(&obj) {
		t.Fatal("disconnect failed")
	}
	if ctrl.sweeps <= after {
		t.Error("disconnect finished without a sweep")
	}
}
