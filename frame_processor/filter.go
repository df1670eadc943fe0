package frame_processor

import (
	"fmt"

	"github.com/mjibson/go-dsp/fft"
)

const (
	DefaultLowCutHz  = 100.0
	DefaultHighCutHz = 3000.0
)

// BandPass removes spectral content outside [lowHz, highHz] by masking FFT bins.
func BandPass(samples []float64, sampleRate int, lowHz, highHz float64) ([]float64, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples")
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	nyquist := float64(sampleRate) / 2
	if lowHz < 0 || highHz <= lowHz || highHz > nyquist {
		return nil, fmt.Errorf("invalid cutoffs %.1f-%.1f Hz for nyquist %.1f Hz", lowHz, highHz, nyquist)
	}

	spectrum := fft.FFTReal(samples)
	n := len(spectrum)
	binWidth := float64(sampleRate) / float64(n)

	for k := range spectrum {
		bin := k
		if k > n/2 {
			bin = n - k
		}

		freq := float64(bin) * binWidth
		if freq < lowHz || freq > highHz {
			spectrum[k] = 0
		}
	}

	inverse := fft.IFFT(spectrum)

	out := make([]float64, n)
	for i, c := range inverse {
		out[i] = real(c)
	}

	return out, nil
}
