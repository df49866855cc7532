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

package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestFiresThenRepeats(t *testing.T) {
	var count uint32
	fired := make(chan struct{}, 16)

	tm := AfterPeriodic(10*time.Millisecond, 10*time.Millisecond, func() {
		atomic.AddUint32(&count, 1)
		fired <- struct{}{}
	})
	defer tm.Cancel()

	for i := 0; i < 3; i++ {
		select {
		case <-fired:
		case <-time.After(time.Second):
			t.Fatalf("callback %d never fired", i)
		}
	}
}

func TestCancelStops(t *testing.T) {
	var count uint32
	tm := AfterPeriodic(5*time.Millisecond, 5*time.Millisecond, func() {
		atomic.AddUint32(&count, 1)
	})

	time.Sleep(30 * time.Millisecond)
	tm.Cancel()

	settled := atomic.LoadUint32(&count)
	time.Sleep(30 * time.Millisecond)

	// One more firing may have been in flight when Cancel hit.
	if after := atomic.LoadUint32(&count); after > settled+1 {
		t.Errorf("callback kept firing after cancel: %d -> %d", settled, after)
	}
}

func TestCancelBeforeDue(t *testing.T) {
	var count uint32
	tm := AfterPeriodic(50*time.Millisecond, 50*time.Millisecond, func() {
		atomic.AddUint32(&count, 1)
	})
	tm.Cancel()
	tm.Cancel() // must be idempotent

	time.Sleep(80 * time.Millisecond)
	if atomic.LoadUint32(&count) != 0 {
		t.Error("canceled timer fired")
	}
}

func TestCancelFromCallback(t *testing.T) {
	done := make(chan struct{})
	ready := make(chan *Timer, 1)

	tm := AfterPeriodic(10*time.Millisecond, 10*time.Millisecond, func() {
		select {
		case tm := <-ready:
			tm.Cancel()
			close(done)
		default:
		}
	})
	ready <- tm

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback never fired")
	}
}
