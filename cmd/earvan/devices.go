package main

import (
	"fmt"

	"github.com/LoganthP/EarVan/device"
)

// DevicesCmd lists the audio devices PortAudio can see.
type DevicesCmd struct{}

func (DevicesCmd) Run() error {
	infos, err := device.List()
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}

	for _, d := range infos {
		marker := ""
		if d.DefaultInput {
			marker += " [default input]"
		}
		if d.DefaultOutput {
			marker += " [default output]"
		}
		fmt.Printf("%3d: %s%s\n", d.Index, d.Name, marker)
		fmt.Printf("     in:%d out:%d @ %.0f Hz\n", d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate)
	}
	return nil
}
