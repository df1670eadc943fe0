package voice_activity_detection

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

const (
	DefaultFluxRatio      = 1.75
	DefaultHangoverFrames = 7
)

// fluxImpl detects speech onsets as jumps in spectral flux relative to the
// previous reference, and holds speech for a number of quiet frames before
// releasing it.
type fluxImpl struct {
	ratio          float64
	hangoverFrames int

	lastSpectrum []float64
	lastFlux     float64
	heard        bool
	quietFrames  int
}

type FluxConfig struct {
	// Ratio is how much the flux must rise over the reference to start speech,
	// and fall below it to count as quiet.
	Ratio          float64
	HangoverFrames int
}

func NewFlux(cfg *FluxConfig) Detector {
	v := &fluxImpl{
		ratio:          DefaultFluxRatio,
		hangoverFrames: DefaultHangoverFrames,
	}

	if cfg != nil {
		if cfg.Ratio > 1 {
			v.ratio = cfg.Ratio
		}

		if cfg.HangoverFrames >= 0 {
			v.hangoverFrames = cfg.HangoverFrames
		}
	}

	return v
}

func (v *fluxImpl) IsSpeech(samples []float64) (bool, error) {
	flux, err := v.Flux(samples)
	if err != nil {
		return false, err
	}

	if v.lastFlux == 0 {
		v.lastFlux = flux
		return false, nil
	}

	if v.heard {
		if flux*v.ratio <= v.lastFlux {
			v.quietFrames++

			if v.quietFrames > v.hangoverFrames {
				v.heard = false
				v.quietFrames = 0
				v.lastFlux = flux
			}
		} else {
			v.quietFrames = 0
			v.lastFlux = flux
		}
	} else {
		if flux >= v.lastFlux*v.ratio {
			v.heard = true
			v.quietFrames = 0
		}

		v.lastFlux = flux
	}

	return v.heard, nil
}

// Flux returns the positive spectral difference between this frame and the
// previous one.
func (v *fluxImpl) Flux(samples []float64) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrEmptyFrame
	}

	windowed := make([]float64, len(samples))
	copy(windowed, samples)
	window.Apply(windowed, window.Hann)

	spectrum := fft.FFTReal(windowed)

	bins := len(spectrum)/2 + 1
	magnitudes := make([]float64, bins)

	for i := 0; i < bins; i++ {
		magnitudes[i] = cmplx.Abs(spectrum[i])
	}

	var flux float64

	if len(v.lastSpectrum) == bins {
		for i, m := range magnitudes {
			if d := m - v.lastSpectrum[i]; d > 0 {
				flux += d
			}
		}
	}

	v.lastSpectrum = magnitudes

	if math.IsNaN(flux) || math.IsInf(flux, 0) {
		return 0, fmt.Errorf("invalid flux value %v", flux)
	}

	return flux, nil
}

func (v *fluxImpl) Reset() {
	v.lastSpectrum = nil
	v.lastFlux = 0
	v.heard = false
	v.quietFrames = 0
}
