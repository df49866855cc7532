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

package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/osterlund/virtualint/driver"
	"github.com/osterlund/virtualint/driver/keyboard"
	"github.com/osterlund/virtualint/machine"
	"github.com/osterlund/virtualint/monitor"
	"github.com/osterlund/virtualint/platform"
	"github.com/osterlund/virtualint/version"
)

var (
	configFile string
	isrLimitUS uint
	headless   bool
	ver        bool
)

func init() {
	if p, ok := os.LookupEnv("VINT_CONFIG_PATH"); ok {
		configFile = p
	}

	flag.StringVar(&configFile, "config", configFile, "Path to machine configuration")
	flag.UintVar(&isrLimitUS, "isr-limit", 0, "ISR time limit in microseconds (overrides configuration)")
	flag.BoolVar(&headless, "headless", false, "Run a delivery self test instead of the monitor")
	flag.BoolVar(&ver, "v", false, "Print version information")
}

func run() {
	if ver {
		fmt.Printf("%s (%s)\n", version.Current.FullString(), version.Hash)
		return
	}

	cfg := platform.DefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = platform.LoadConfig(platform.Instance, configFile); err != nil {
			log.Fatal(err)
		}
	}
	if isrLimitUS != 0 {
		cfg.ISRTimeLimitUS = uint32(isrLimitUS)
	}

	m := machine.New(machine.Config{
		Processors:  cfg.Processors,
		Vectors:     cfg.Vectors,
		LineBase:    cfg.LineBase,
		Lines:       cfg.Lines,
		FlatBase:    cfg.FlatBase,
		FlatVectors: cfg.FlatVectors,
	})

	k := m.Kernel()
	k.SetISRTimeLimit(cfg.ISRTimeLimitUS)
	k.StartWatchdog()

	kb := &keyboard.Device{Vector: cfg.KeyboardVector, Level: 5, Processor: 0}

	drivers := append([]driver.Driver{kb}, extraDrivers(cfg)...)
	for _, d := range drivers {
		if err := d.Install(m); err != nil {
			log.Fatal(err)
		}
		log.Print("Installed: ", d.Name())
	}
	defer func() {
		for _, d := range drivers {
			if c, ok := d.(driver.DriverCloser); ok {
				c.Close()
			}
		}
	}()

	if headless {
		selfTest(m, cfg)
		return
	}

	printLogo()
	mon := monitor.New(m)
	mon.SetKeyHandler(kb.SendKeyEvent)
	if err := mon.Run(); err != nil {
		log.Fatal(err)
	}
}

func selfTest(m *machine.Machine, cfg platform.Config) {
	// Exercise the keyboard vector and one unexpected vector, then
	// report what the machine saw.
	for i := 0; i < 10; i++ {
		m.Interrupt(0, cfg.KeyboardVector)
	}
	m.Interrupt(0, cfg.LineBase+cfg.Lines) // no backing line, hits the stub

	state, chain := m.Kernel().InspectVector(cfg.KeyboardVector)
	fmt.Printf("vector %#x: %s, %d object(s)\n", cfg.KeyboardVector, state, len(chain))
	for _, obj := range chain {
		dispatches, _ := obj.Stats()
		fmt.Printf("  [%s] %d dispatches\n", obj.Mode(), dispatches)
	}
	fmt.Printf("sweeps: %d, unexpected: %d\n", m.Sweeps(), m.Unexpected())
}

func printLogo() {
	fmt.Print(logo)
	fmt.Println("v" + version.Current.String())
}

var logo = `
██╗   ██╗██╗██████╗ ████████╗██╗   ██╗ █████╗ ██╗     ██╗███╗   ██╗████████╗
██║   ██║██║██╔══██╗╚══██╔══╝██║   ██║██╔══██╗██║     ██║████╗  ██║╚══██╔══╝
██║   ██║██║██████╔╝   ██║   ██║   ██║███████║██║     ██║██╔██╗ ██║   ██║
╚██╗ ██╔╝██║██╔══██╗   ██║   ██║   ██║██╔══██║██║     ██║██║╚██╗██║   ██║
 ╚████╔╝ ██║██║  ██║   ██║   ╚██████╔╝██║  ██║███████╗██║██║ ╚████║   ██║
  ╚═══╝  ╚═╝╚═╝  ╚═╝   ╚═╝    ╚═════╝ ╚═╝  ╚═╝╚══════╝╚═╝╚═╝  ╚═══╝   ╚═╝
`
