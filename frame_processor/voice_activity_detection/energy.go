package voice_activity_detection

import "math"

const DefaultEnergyThreshold = 0.01

// MeanAbsAmplitude is the energy measure used by the fallback classifier.
func MeanAbsAmplitude(samples []float64) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrEmptyFrame
	}

	var sum float64
	for _, s := range samples {
		sum += math.Abs(s)
	}

	return sum / float64(len(samples)), nil
}

type energyImpl struct {
	threshold float64
}

func NewEnergy(threshold float64) Detector {
	if threshold <= 0 {
		threshold = DefaultEnergyThreshold
	}

	return &energyImpl{threshold: threshold}
}

func (e *energyImpl) IsSpeech(samples []float64) (bool, error) {
	energy, err := MeanAbsAmplitude(samples)
	if err != nil {
		return false, err
	}

	return energy > e.threshold, nil
}

func (e *energyImpl) Reset() {}
