package flash

import "fmt"

// Kind names a flash calculation by its pair of independent variables.
type Kind string

const (
	PT Kind = "pt_flash"
	PH Kind = "ph_flash"
	TS Kind = "ts_flash"
	VT Kind = "vt_flash"
	UV Kind = "uv_flash"
)

// Axis describes one independent variable of a flash kind.
type Axis struct {
	Name     string
	Property Property
	// IdxName is the result field carrying the grid index along this axis.
	IdxName string
}

var kindAxes = map[Kind][2]Axis{
	PT: {{"pressure", PropPressure, "p_idx"}, {"temperature", PropTemperature, "t_idx"}},
	PH: {{"pressure", PropPressure, "p_idx"}, {"enthalpy", PropEnthalpy, "h_idx"}},
	TS: {{"temperature", PropTemperature, "t_idx"}, {"entropy", PropEntropy, "s_idx"}},
	VT: {{"temperature", PropTemperature, "t_idx"}, {"specific_volume", PropSpecificVolume, "v_idx"}},
	UV: {{"internal_energy", PropInternalEnergy, "u_idx"}, {"specific_volume", PropSpecificVolume, "v_idx"}},
}

func Kinds() []Kind { return []Kind{PT, PH, TS, VT, UV} }

func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := kindAxes[k]; !ok {
		return "", fmt.Errorf("flash: unknown flash type %q", s)
	}
	return k, nil
}

// Axes returns the x and y axes. Unknown kinds fall back to pressure/temperature.
func (k Kind) Axes() (x, y Axis) {
	a, ok := kindAxes[k]
	if !ok {
		a = kindAxes[PT]
	}
	return a[0], a[1]
}
