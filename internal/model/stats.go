package model

import "fmt"

// Stats summarizes the most recent bars of a series.
type Stats struct {
	Price         float64
	Change        float64
	PercentChange float64 // already rounded to two decimals
	High          float64
	Low           float64
	Volume        float64
	HasVolume     bool
}

// PercentLabel renders the percent change with an explicit sign, e.g. "+1.25%".
func (s Stats) PercentLabel() string {
	return fmt.Sprintf("%+.2f%%", s.PercentChange)
}

// VolumeLabel renders the volume, or a placeholder when the source had none.
func (s Stats) VolumeLabel() string {
	if !s.HasVolume {
		return "--"
	}
	return fmt.Sprintf("%.0f", s.Volume)
}
