// Package link_model derives link and swap probabilities for trapped-atom
// repeaters connected by telecom fiber, and the entanglement rates that go with them.
package link_model

import "math"

// Params are the physical constants of the repeater hardware. Times in seconds, lengths in meters.
type Params struct {
	AtomPhotonProb    float64 `toml:"p_ht"`  // atom-photon entanglement probability
	HeraldEfficiency  float64 `toml:"v_h"`   // herald detector efficiency
	TelecomEfficiency float64 `toml:"v_t"`   // telecom detector efficiency
	OpticalBSM        float64 `toml:"v_o"`   // optical BSM efficiency
	AtomicBSM         float64 `toml:"v_a"`   // atomic BSM efficiency, i.e. swap success
	AttenuationLength float64 `toml:"l0"`    // fiber attenuation length
	FiberLightSpeed   float64 `toml:"c_f"`   // speed of light in fiber
	PulseDuration     float64 `toml:"tau_p"` // atom pulse duration
	HeraldTime        float64 `toml:"tau_h"` // herald detection time
	TelecomTime       float64 `toml:"tau_t"` // telecom detection time
	CoolingTime       float64 `toml:"tau_d"` // atom cooling time
	OpticalBSMTime    float64 `toml:"tau_o"` // optical BSM duration
	AtomicBSMTime     float64 `toml:"tau_a"` // atomic BSM duration
	CoherenceTime     float64 `toml:"t_ch"`  // quantum memory coherence time
}

func DefaultParams() Params {
	return Params{
		AtomPhotonProb:    0.53,
		HeraldEfficiency:  0.8,
		TelecomEfficiency: 0.8,
		OpticalBSM:        0.39,
		AtomicBSM:         0.39,
		AttenuationLength: 22e3,
		FiberLightSpeed:   2e8,
		PulseDuration:     5.9e-6,
		HeraldTime:        20e-6,
		TelecomTime:       10e-6,
		CoolingTime:       100e-6,
		OpticalBSMTime:    10e-6,
		AtomicBSMTime:     10e-6,
		CoherenceTime:     10e-3,
	}
}

// WithDefaults fills zero fields from DefaultParams
func (p Params) WithDefaults() Params {
	d := DefaultParams()
	fill := func(v *float64, def float64) {
		if *v == 0 {
			*v = def
		}
	}
	fill(&p.AtomPhotonProb, d.AtomPhotonProb)
	fill(&p.HeraldEfficiency, d.HeraldEfficiency)
	fill(&p.TelecomEfficiency, d.TelecomEfficiency)
	fill(&p.OpticalBSM, d.OpticalBSM)
	fill(&p.AtomicBSM, d.AtomicBSM)
	fill(&p.AttenuationLength, d.AttenuationLength)
	fill(&p.FiberLightSpeed, d.FiberLightSpeed)
	fill(&p.PulseDuration, d.PulseDuration)
	fill(&p.HeraldTime, d.HeraldTime)
	fill(&p.TelecomTime, d.TelecomTime)
	fill(&p.CoolingTime, d.CoolingTime)
	fill(&p.OpticalBSMTime, d.OpticalBSMTime)
	fill(&p.AtomicBSMTime, d.AtomicBSMTime)
	fill(&p.CoherenceTime, d.CoherenceTime)
	return p
}

// SuccessProbability is the chance that one heralded attempt over a fiber of
// length distance yields an elementary entangled pair
func (p Params) SuccessProbability(distance float64) float64 {
	detection := p.AtomPhotonProb * p.HeraldEfficiency * p.TelecomEfficiency
	return 0.5 * p.OpticalBSM * detection * detection * math.Exp(-distance/p.AttenuationLength)
}

// SwapProbability is the success probability of an atomic BSM at a repeater
func (p Params) SwapProbability() float64 {
	return p.AtomicBSM
}

// roundTrip is the time for photons to meet at the midpoint station and be measured
func (p Params) roundTrip(distance float64) float64 {
	half := distance / (2 * p.FiberLightSpeed)
	return p.TelecomTime + half + p.OpticalBSMTime + half
}

// AttemptTime is the mean time to generate one elementary pair, counting failed attempts
func (p Params) AttemptTime(distance float64) float64 {
	prob := p.SuccessProbability(distance)
	tau := p.roundTrip(distance)
	success := p.PulseDuration + math.Max(p.HeraldTime, tau)
	failure := p.PulseDuration + math.Max(p.HeraldTime, math.Max(tau, p.CoolingTime))
	return ((1-prob)*failure + prob*success) / prob
}

// LinkRate is the elementary entanglement rate (pairs per second) over one
// fiber, zero when the memory decoheres before the herald returns
func (p Params) LinkRate(distance float64) float64 {
	if p.CoherenceTime < p.roundTrip(distance) {
		return 0
	}
	return 1 / p.AttemptTime(distance)
}

// PathRate is the end-to-end entanglement rate over consecutive hops of the
// given fiber lengths. The chain is split in two halves that are generated
// independently and joined by one swap at the middle repeater.
func (p Params) PathRate(distances []float64) float64 {
	switch len(distances) {
	case 0:
		return 0
	case 1:
		return p.LinkRate(distances[0])
	}

	k := (len(distances) + 1) / 2
	left := p.PathRate(distances[:k])
	right := p.PathRate(distances[k:])
	if left == 0 || right == 0 {
		return 0
	}

	slowest := math.Max(1/left, 1/right)
	if p.CoherenceTime < slowest+p.AtomicBSMTime {
		return 0
	}
	swapTime := (slowest + p.AtomicBSMTime) / p.AtomicBSM
	return 1 / swapTime
}
