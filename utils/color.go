package utils

import (
	"punish-engine/model"
)

// Embed colours.
const (
	ColorRed    = 0xff0000
	ColorOrange = 0xffa500
	ColorYellow = 0xffff00
	ColorGreen  = 0x00ff00
	ColorBlue   = 0x0000ff
	ColorGray   = 0x808080
)

// SeverityColor maps a severity onto the embed colour used for it.
func SeverityColor(sev model.Severity) int {
	switch sev {
	case model.SeverityLow:
		return ColorBlue
	case model.SeverityMedium:
		return ColorYellow
	case model.SeverityHigh:
		return ColorOrange
	case model.SeverityCritical:
		return ColorRed
	default:
		return ColorGray
	}
}
