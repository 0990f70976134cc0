package bands

import "math"

// Band is one sub-GHz preset the CC1101 can be tuned to.
type Band struct {
	Code      string
	Name      string
	Frequency float64
}

var Catalog = []Band{
	{Code: "315", Name: "315 MHz (US remotes)", Frequency: 315.00},
	{Code: "433", Name: "433.92 MHz (EU/RU remotes)", Frequency: 433.92},
	{Code: "868", Name: "868.30 MHz (EU SRD)", Frequency: 868.30},
	{Code: "915", Name: "915 MHz (US ISM)", Frequency: 915.00},
}

func DefaultIndex() int {
	for i, band := range Catalog {
		if band.Code == "433" {
			return i
		}
	}
	return 0
}

// Match returns the preset tuned within 50 kHz of mhz.
func Match(mhz float64) (int, bool) {
	for i, band := range Catalog {
		if math.Abs(band.Frequency-mhz) < 0.05 {
			return i, true
		}
	}
	return -1, false
}

// Next is the preset after the one matching mhz; a custom frequency starts
// from the default.
func Next(mhz float64) Band {
	i, ok := Match(mhz)
	if !ok {
		return Catalog[DefaultIndex()]
	}
	return Catalog[(i+1)%len(Catalog)]
}

// Label names mhz by its preset, or "custom".
func Label(mhz float64) string {
	if i, ok := Match(mhz); ok {
		return Catalog[i].Name
	}
	return "custom"
}
