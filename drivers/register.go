package drivers

import "github.com/easternanemone/daqstreams/instrument"

// RegisterAll adds every built-in instrument type to the registry.
func RegisterAll(r *instrument.Registry) error {
	registrations := []*instrument.Registration{
		{
			Name:        "esp300",
			Description: "Newport ESP300 motion controller axis (linear stage, mm)",
			Version:     "1.0.0",
			Factory:     NewESP300,
		},
		{
			Name:        "ell14",
			Description: "Thorlabs ELL14 rotation mount (rotary stage, degrees)",
			Version:     "1.0.0",
			Factory:     NewELL14,
		},
		{
			Name:        "newport1830c",
			Description: "Newport 1830-C optical power meter",
			Version:     "1.0.0",
			Factory:     NewNewport1830C,
		},
		{
			Name:        "maitai",
			Description: "Spectra-Physics Mai Tai tunable Ti:sapphire laser",
			Version:     "1.0.0",
			Factory:     NewMaiTai,
		},
		{
			Name:        "simcam",
			Description: "Simulated 16-bit camera",
			Version:     "1.0.0",
			Factory:     NewSimCam,
		},
	}
	for _, reg := range registrations {
		if err := r.Register(reg); err != nil {
			return err
		}
	}
	return nil
}
