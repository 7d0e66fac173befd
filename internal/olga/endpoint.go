package olga

import (
	"strings"

	"Flashgrid/internal/flash"
)

// Endpoint binds a flash kind to the axis scaling OLGA expects.
type Endpoint struct {
	Kind        flash.Kind
	XHeader     string
	YHeader     string
	XMultiplier float64
	YMultiplier float64
}

var endpoints = map[flash.Kind]Endpoint{
	flash.PT: {flash.PT, "Pressure (Pa)", "Temperature (C)", 1e5, 1},
	flash.PH: {flash.PH, "Pressure (Pa)", "Enthalpy (J/mol)", 1e5, 1},
	flash.TS: {flash.TS, "Temperature (C)", "Entropy (J/mol-K)", 1, 1},
	flash.VT: {flash.VT, "Temperature (C)", "Specific Volume (m3/mol)", 1, 1},
	flash.UV: {flash.UV, "Internal Energy (J/mol)", "Specific Volume (m3/mol)", 1, 1},
}

// EndpointFor falls back to pt_flash for unknown kinds.
func EndpointFor(kind flash.Kind) Endpoint {
	if e, ok := endpoints[kind]; ok {
		return e
	}
	return endpoints[flash.PT]
}

// Filename is the attachment name, e.g. "pt-flash.tab".
func (e Endpoint) Filename() string {
	return strings.ReplaceAll(string(e.Kind), "_", "-") + ".tab"
}
