package main

import (
	"fmt"

	"github.com/gethiox/midizap/internal/pkg/midi/driver"
	"github.com/gethiox/midizap/internal/pkg/midi/driver/alsa"
	"github.com/gethiox/midizap/internal/pkg/midi/driver/rawmidi"
)

// rawPorts picks the raw MIDI devices of the transport, a port without
// output keeps only its input.
func rawPorts(devices []rawmidi.Device, m MIDI, outputs int) ([]driver.Port, error) {
	n := outputs
	if n < 1 {
		n = 1
	}
	ports := make([]driver.Port, n)
	for i := range ports {
		d, err := rawmidi.Find(devices, m.Devices[i])
		if err != nil {
			return nil, fmt.Errorf("port %d: %w", i+1, err)
		}
		ports[i] = d.Port()
		if i >= outputs {
			ports[i].Output = nil
		}
	}
	return ports, nil
}

func createPorts(m MIDI, opts Options) ([]driver.Port, error) {
	if m.Backend != BackendRaw {
		return alsa.CreatePorts(opts.PortConfig())
	}
	devices, err := rawmidi.DetectDevices(rawmidi.DeviceDir)
	if err != nil {
		return nil, err
	}
	return rawPorts(devices, m, opts.Ports)
}

func listPorts() {
	ports := alsa.GetPorts()
	if len(ports) == 0 {
		fmt.Println("There is no MIDI ports available")
	}
	for i, p := range ports {
		fmt.Printf("%d: %s\n", i, p.String())
	}

	devices, err := rawmidi.DetectDevices(rawmidi.DeviceDir)
	if err != nil {
		return
	}
	for i, d := range devices {
		fmt.Printf("raw %d: %s\n", i, d.Path)
	}
}
