package classifier

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// fft computes the real-to-complex FFT of length WindowSize used by every
// Classifier; gonum's FFT plan carries internal twiddle-factor tables, so it
// is built once and reused across Predict calls.
var fft = fourier.NewFFT(WindowSize)

// Predict runs the FFT-based classifier over the current window if enough
// samples have accumulated, pushes the resulting +1/-1 classification into
// the prediction history, and resets the predict-ready counters. It returns
// (false, 0, false) if the window was not ready to predict.
//
// `score + intercept > 0` is the positive ("seizure") classification.
func (w *Window) Predict() (seizureDetected bool, score float64, ran bool) {
	if !w.PredictReady() {
		return false, 0, false
	}
	coeffs := fft.Coefficients(nil, w.samples)
	for k := 0; k < Bins && k < len(coeffs); k++ {
		re, im := real(coeffs[k]), imag(coeffs[k])
		psd := math.Sqrt(re*re + im*im)
		score += Weights[k] * psd
	}
	positive := score+Intercept > 0
	var classification int8 = -1
	if positive {
		classification = 1
	}
	w.pushPrediction(classification)
	return positive, score, true
}
