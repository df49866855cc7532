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

// Package monitor is a terminal frontend showing the machine's vector
// bindings live: classification, chain membership, dispatch counters and
// the watchdog threshold. Key events are forwarded to the installed
// keyboard device, which asserts its vector, so typing exercises the
// whole delivery path.
package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell"

	"github.com/osterlund/virtualint/kernel/interrupt"
	"github.com/osterlund/virtualint/machine"
)

type Monitor struct {
	sync.Mutex

	screen     tcell.Screen
	m          *machine.Machine
	keyHandler func(ev interface{}) error
	quit       chan struct{}
	quitOnce   sync.Once
}

func New(m *machine.Machine) *Monitor {
	return &Monitor{m: m, quit: make(chan struct{})}
}

// SetKeyHandler forwards key events to a device frontend, typically the
// keyboard driver's SendKeyEvent.
func (p *Monitor) SetKeyHandler(h func(ev interface{}) error) {
	p.Lock()
	p.keyHandler = h
	p.Unlock()
}

func (p *Monitor) Quit() {
	p.quitOnce.Do(func() { close(p.quit) })
}

// Run initializes the screen and blocks until the user quits.
func (p *Monitor) Run() error {
	tcell.SetEncodingFallback(tcell.EncodingFallbackASCII)

	s, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := s.Init(); err != nil {
		return err
	}
	defer s.Fini()

	p.screen = s
	s.HideCursor()
	s.Clear()

	go p.eventLoop()

	ticker := time.NewTicker(time.Second / 4)
	defer ticker.Stop()

	for {
		select {
		case <-p.quit:
			return nil
		case <-ticker.C:
			p.redraw()
		}
	}
}

func (p *Monitor) eventLoop() {
	for {
		ev := p.screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyF12 || ev.Key() == tcell.KeyCtrlC {
				p.Quit()
				return
			}
			p.Lock()
			h := p.keyHandler
			p.Unlock()
			if h != nil {
				h(ev)
			}
		case *tcell.EventResize:
			p.screen.Sync()
		}
	}
}

func (p *Monitor) redraw() {
	s := p.screen
	s.Clear()

	style := tcell.StyleDefault
	head := style.Bold(true)

	row := 0
	p.print(0, row, head, "virtualint - interrupt vector monitor (F12 quits)")
	row += 2

	k := p.m.Kernel()
	p.print(0, row, style, fmt.Sprintf("sweeps: %d  unexpected: %d  isr cycle limit: %s",
		p.m.Sweeps(), p.m.Unexpected(), limitString(k.ISRCycleLimit())))
	row += 2

	p.print(0, row, head, "VECTOR  STATE      OBJECTS (dispatch counts)")
	row++

	for vector := 0; vector < p.m.Vectors(); vector++ {
		state, chain := k.InspectVector(vector)
		if state == interrupt.VectorUnused {
			continue
		}

		line := fmt.Sprintf("%#04x   %-9s ", vector, state)
		for _, obj := range chain {
			dispatches, _ := obj.Stats()
			if dispatches == ^uint32(0) { // never dispatched
				dispatches = 0
			}
			line += fmt.Sprintf(" [%s %d]", obj.Mode(), dispatches)
		}
		p.print(0, row, style, line)
		row++
	}

	s.Show()
}

func (p *Monitor) print(x, y int, style tcell.Style, text string) {
	for i, r := range text {
		p.screen.SetContent(x+i, y, r, nil, style)
	}
}

func limitString(limit uint64) string {
	switch limit {
	case ^uint64(0):
		return "disabled"
	case ^uint64(0) - 1:
		return "calibrating"
	}
	return fmt.Sprintf("%d", limit)
}
