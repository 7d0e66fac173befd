package wilson

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"Flashgrid/internal/flash"
)

const (
	// R is the gas constant in J/(mol·K).
	R      = 8.314462618
	kelvin = 273.15
	// Reference state for enthalpy and entropy: 298.15 K, 1 atm in bar.
	tRef = 298.15
	pRef = 1.01325

	// Critical compressibility used for the pseudo-critical density.
	zCrit = 0.29
)

// equilibrium is a PT flash of one mixture, in engine units (K, bar, m³/mol).
type equilibrium struct {
	T, P  float64
	beta  float64
	phase flash.Phase
	x, y  []float64

	vL, vV   float64
	hL, hV   float64
	sL, sV   float64
	cpL, cpV float64
}

// wilsonK estimates K-values from critical constants.
func (m *mixture) wilsonK(T, P float64) []float64 {
	k := make([]float64, len(m.comps))
	for i, c := range m.comps {
		k[i] = c.Pc / P * math.Exp(5.373*(1+c.Omega)*(1-c.Tc/T))
	}
	return k
}

func (m *mixture) pseudoCritical() (tc, pc float64) {
	return floats.Dot(m.z, m.column(func(c Component) float64 { return c.Tc })),
		floats.Dot(m.z, m.column(func(c Component) float64 { return c.Pc }))
}

func (m *mixture) molarMass() float64 {
	return floats.Dot(m.z, m.column(func(c Component) float64 { return c.M }))
}

// rachfordRice returns the vapor fraction for feed z and K-values,
// pinned to 0 or 1 outside the two-phase region.
func rachfordRice(z, k []float64) float64 {
	f := func(beta float64) float64 {
		s := 0.0
		for i := range z {
			s += z[i] * (k[i] - 1) / (1 + beta*(k[i]-1))
		}
		return s
	}
	if f(0) <= 0 {
		return 0
	}
	if f(1) >= 0 {
		return 1
	}
	lo, hi := 0.0, 1.0
	for i := 0; i < 100 && hi-lo > 1e-13; i++ {
		mid := (lo + hi) / 2
		if f(mid) > 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

func vaporization(c Component, T float64) float64 {
	tr := T / c.Tc
	if tr >= 1 {
		return 0
	}
	return R * c.Tc * (7.08*math.Pow(1-tr, 0.354) + 10.95*c.Omega*math.Pow(1-tr, 0.456))
}

// rackett is the saturated liquid molar volume in m³/mol.
func rackett(c Component, T float64) float64 {
	tr := math.Min(T/c.Tc, 0.99)
	zra := 0.29056 - 0.08775*c.Omega
	return R * c.Tc / (c.Pc * 1e5) * math.Pow(zra, 1+math.Pow(1-tr, 2.0/7.0))
}

func saturation(c Component, T float64) float64 {
	return c.Pc * math.Exp(5.373*(1+c.Omega)*(1-c.Tc/T))
}

func mixingEntropy(v []float64) float64 {
	s := 0.0
	for _, f := range v {
		if f > 0 {
			s -= R * f * math.Log(f)
		}
	}
	return s
}

// solvePT runs the PT flash at T (K) and P (bar).
func (m *mixture) solvePT(T, P float64) equilibrium {
	e := equilibrium{T: T, P: P}
	tc, pc := m.pseudoCritical()

	if T > tc && P > pc {
		e.beta = 1
		e.phase = flash.PhaseSupercritical
	} else {
		e.beta = rachfordRice(m.z, m.wilsonK(T, P))
		switch {
		case e.beta <= 0:
			e.phase = flash.PhaseLiquid
		case e.beta >= 1:
			e.phase = flash.PhaseVapor
		default:
			e.phase = flash.PhaseTwoPhase
		}
	}

	k := m.wilsonK(T, P)
	e.x = make([]float64, len(m.z))
	e.y = make([]float64, len(m.z))
	for i := range m.z {
		switch e.phase {
		case flash.PhaseTwoPhase:
			e.x[i] = m.z[i] / (1 + e.beta*(k[i]-1))
			e.y[i] = k[i] * e.x[i]
		default:
			e.x[i], e.y[i] = m.z[i], m.z[i]
		}
	}
	if e.phase == flash.PhaseTwoPhase {
		floats.Scale(1/floats.Sum(e.x), e.x)
		floats.Scale(1/floats.Sum(e.y), e.y)
	}

	for i, c := range m.comps {
		sens := c.CpIG * (T - tRef)
		sIG := c.CpIG * math.Log(T/tRef)
		dh := vaporization(c, T)

		e.vL += e.x[i] * rackett(c, T)
		e.hV += e.y[i] * sens
		e.hL += e.x[i] * (sens - dh)
		e.sV += e.y[i] * (sIG - R*math.Log(P/pRef))
		e.sL += e.x[i] * (sIG - R*math.Log(math.Max(saturation(c, T), 1e-12)/pRef) - dh/T)
		e.cpV += e.y[i] * c.CpIG
		e.cpL += e.x[i] * c.CpIG * 1.4
	}
	e.sV += mixingEntropy(e.y)
	e.sL += mixingEntropy(e.x)
	e.vV = R * T / (P * 1e5)
	return e
}

func (e equilibrium) volume() float64   { return e.beta*e.vV + (1-e.beta)*e.vL }
func (e equilibrium) enthalpy() float64 { return e.beta*e.hV + (1-e.beta)*e.hL }
func (e equilibrium) entropy() float64  { return e.beta*e.sV + (1-e.beta)*e.sL }

// energy is the molar internal energy u = h - Pv.
func (e equilibrium) energy() float64 { return e.enthalpy() - e.P*1e5*e.volume() }

func (e equilibrium) quality() float64 {
	if e.phase == flash.PhaseSupercritical {
		return flash.QualitySupercritical
	}
	return e.beta
}

// state renders the equilibrium in service units.
func (m *mixture) state(kind flash.Kind, e equilibrium) *flash.State {
	s := flash.NewState(kind)
	s.Phase = e.phase
	s.X, s.Y = e.x, e.y

	mm := m.molarMass()
	tc, pc := m.pseudoCritical()
	T := e.T
	v := e.volume()
	rho := 1 / (v * 1000)

	s.Set(flash.PropTemperature, T-kelvin)
	s.Set(flash.PropPressure, e.P)
	s.Set(flash.PropSpecificVolume, v)
	s.Set(flash.PropDensity, rho)
	s.Set(flash.PropVaporFraction, e.quality())
	s.Set(flash.PropEnthalpy, e.enthalpy())
	s.Set(flash.PropEntropy, e.entropy())
	s.Set(flash.PropInternalEnergy, e.energy())
	s.Set(flash.PropCriticalTemperature, tc)
	s.Set(flash.PropCriticalPressure, pc)
	s.Set(flash.PropCriticalDensity, pc*1e5/(zCrit*R*tc)/1000)
	s.Set(flash.PropCompressibilityFactor, e.P*1e5*v/(R*T))

	liquid := e.phase == flash.PhaseLiquid || e.phase == flash.PhaseTwoPhase
	vapor := !liquid || e.phase == flash.PhaseTwoPhase

	var rhoL, rhoV float64
	if liquid {
		rhoL = 1 / (e.vL * 1000)
		s.Set(flash.PropLiquidDensity, rhoL)
	}
	if vapor {
		rhoV = 1 / (e.vV * 1000)
		s.Set(flash.PropVaporDensity, rhoV)
	}

	cp := e.beta*e.cpV + (1-e.beta)*e.cpL
	cv := e.beta*(e.cpV-R) + (1-e.beta)*e.cpL*0.9
	s.Set(flash.PropCp, cp)
	s.Set(flash.PropCv, cv)

	// viscosities in μPa·s, conductivities in W/(m·K)
	muV := 10 * math.Pow(T/300, 0.7)
	muL := 280 * math.Exp(1200*(1/T-1/tRef))
	kV := 0.025 * math.Pow(T/300, 0.8)
	kL := 0.13
	mu := e.beta*muV + (1-e.beta)*muL
	cond := e.beta*kV + (1-e.beta)*kL
	s.Set(flash.PropViscosity, mu)
	s.Set(flash.PropThermalConductivity, cond)

	if liquid && T < tc {
		s.Set(flash.PropSurfaceTension, 0.05*math.Pow(1-T/tc, 1.26))
	}

	switch e.phase {
	case flash.PhaseLiquid:
		s.Set(flash.PropDDdP, rhoL*1e-6)
		s.Set(flash.PropDDdT, -rhoL*1e-3)
		s.Set(flash.PropIsothermalCompressibility, 1e-6)
		s.Set(flash.PropVolumeExpansivity, 1e-3)
		s.Set(flash.PropSoundSpeed, 1200)
	case flash.PhaseVapor, flash.PhaseSupercritical:
		s.Set(flash.PropDDdP, 1/(R*T))
		s.Set(flash.PropDDdT, -rhoV/T)
		s.Set(flash.PropIsothermalCompressibility, 1/(e.P*100))
		s.Set(flash.PropVolumeExpansivity, 1/T)
		s.Set(flash.PropSoundSpeed, math.Sqrt(e.cpV/(e.cpV-R)*R*T/(mm/1000)))
		s.Set(flash.PropJouleThomson, 0)
	}

	// transport groups on a mass basis
	rhoMass := rho * mm // kg/m³
	cpMass := cp * 1000 / mm
	s.Set(flash.PropKinematicViscosity, mu*1e-6/rhoMass*1e4)
	s.Set(flash.PropThermalDiffusivity, cond/(rhoMass*cpMass)*1e4)
	s.Set(flash.PropPrandtl, cpMass*mu*1e-6/cond)
	return s
}
