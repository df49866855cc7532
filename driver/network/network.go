// +build network

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

// Package network is a demo interrupt consumer driven by live traffic:
// every captured frame asserts the adapter's vector and the service
// routine drains the frame queue.
package network

import (
	"errors"
	"log"
	"math"
	"sync/atomic"

	"github.com/google/gopacket/pcap"

	"github.com/osterlund/virtualint/driver"
	"github.com/osterlund/virtualint/kernel/hal"
	"github.com/osterlund/virtualint/kernel/interrupt"
	"github.com/osterlund/virtualint/kernel/irql"
)

const maxFrames = 256

type Device struct {
	Vector    int
	Level     irql.Level
	Processor int

	host         driver.Host
	intr         interrupt.Object
	netInterface *pcap.Interface
	handle       *pcap.Handle
	frames       chan []byte
	received     uint64
}

func (m *Device) Install(h driver.Host) error {
	m.host = h
	m.frames = make(chan []byte, maxFrames)

	devices, err := pcap.FindAllDevs()
	if err != nil {
		return err
	}

	log.Print("Detected network devices:")
	for i := range devices {
		dev := &devices[i]
		log.Printf(" |- %s (%s)", dev.Description, dev.Name)

		var candidate *pcap.Interface
		for _, addr := range dev.Addresses {
			if addr.IP.IsUnspecified() || addr.IP.IsLoopback() {
				candidate = nil
				break
			}
			log.Printf(" |  |- %v", addr.IP)
			candidate = dev
		}

		if candidate != nil && m.netInterface == nil {
			m.netInterface = candidate
		}
	}

	if m.netInterface == nil {
		return errors.New("network: no network device selected")
	}

	log.Print("Selected network device: ", m.netInterface.Description)
	if m.handle, err = pcap.OpenLive(m.netInterface.Name, int32(math.MaxUint16), true, pcap.BlockForever); err != nil {
		return err
	}

	k := h.Kernel()
	k.Initialize(&m.intr, m.serviceRoutine, nil, nil,
		m.Vector, m.Level, m.Level, hal.Latched, true, m.Processor, false)
	if !k.Connect(&m.intr) {
		m.handle.Close()
		return errors.New("network: vector connect failed")
	}

	go m.capture()
	return nil
}

func (m *Device) Name() string {
	return "Network Adapter"
}

func (m *Device) Reset() {
	for {
		select {
		case <-m.frames:
		default:
			return
		}
	}
}

func (m *Device) Close() error {
	if m.handle != nil {
		m.handle.Close()
	}
	m.host.Kernel().Disconnect(&m.intr)
	return nil
}

// Received returns the number of frames serviced by the ISR.
func (m *Device) Received() uint64 {
	return atomic.LoadUint64(&m.received)
}

func (m *Device) capture() {
	for {
		data, _, err := m.handle.ReadPacketData()
		if err != nil {
			return
		}

		select {
		case m.frames <- data:
			m.host.Interrupt(m.Processor, m.Vector)
		default:
			// Queue overrun, frame dropped. The next delivery will
			// drain whatever is left.
		}
	}
}

func (m *Device) serviceRoutine(i *interrupt.Object, context interface{}) bool {
	handled := false
	for {
		select {
		case <-m.frames:
			atomic.AddUint64(&m.received, 1)
			handled = true
		default:
			return handled
		}
	}
}
