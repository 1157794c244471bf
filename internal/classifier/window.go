// Package classifier implements the sliding-window FFT-based seizure
// classifier: a bounded window of microvolt samples, a
// power-spectrum classifier run every R samples, and a weighted-prior
// confidence score over recent predictions.
package classifier

// DefaultSampleRate is R: the classifier predicts once every R samples added.
const DefaultSampleRate = 2

// DefaultPredictionCapacity is P: how many recent predictions feed confidence().
const DefaultPredictionCapacity = 5

// WindowSize is W: the fixed number of samples the FFT runs over.
const WindowSize = 178

// Window is the sliding buffer of microvolt samples plus the short history
// of +1/-1 predictions used for confidence smoothing. It is owned
// exclusively by the Classifier task; no internal locking is performed.
type Window struct {
	capacity   int
	sampleRate int
	predCap    int

	samples []float64

	predictions []int8

	currentSample int
	predictReady  bool
	total         int
}

// NewWindow returns a Window with the given capacity, sample-rate divisor,
// and prediction history capacity.
func NewWindow(capacity, sampleRate, predictionCapacity int) *Window {
	return &Window{
		capacity:   capacity,
		sampleRate: sampleRate,
		predCap:    predictionCapacity,
		samples:    make([]float64, 0, capacity),
	}
}

// New returns a Window using the default window size, sample-rate divisor,
// and prediction-history capacity.
func New() *Window {
	return NewWindow(WindowSize, DefaultSampleRate, DefaultPredictionCapacity)
}

// Add appends a microvolt sample, dropping the oldest sample if the window
// is already at capacity, and advances the predict-ready counter.
func (w *Window) Add(microvolts float64) {
	if len(w.samples) >= w.capacity {
		copy(w.samples, w.samples[1:])
		w.samples = w.samples[:len(w.samples)-1]
	}
	w.samples = append(w.samples, microvolts)
	w.currentSample++
	w.total++
	if w.currentSample >= w.sampleRate {
		w.predictReady = true
	}
}

// PredictReady reports whether the classifier should run: the sample-rate
// counter has elapsed AND the window is fully populated.
func (w *Window) PredictReady() bool {
	return w.predictReady && len(w.samples) == w.capacity
}

// Total returns the total number of samples ever added.
func (w *Window) Total() int { return w.total }

// Len returns the current number of buffered samples (<= capacity).
func (w *Window) Len() int { return len(w.samples) }

// Samples returns the current window contents, oldest first. The returned
// slice is owned by the caller; mutating it does not affect the window.
func (w *Window) Samples() []float64 {
	out := make([]float64, len(w.samples))
	copy(out, w.samples)
	return out
}

// pushPrediction records a classification outcome, dropping the oldest
// prediction if at capacity, and resets the predict-ready counters.
func (w *Window) pushPrediction(classification int8) {
	if len(w.predictions) >= w.predCap {
		copy(w.predictions, w.predictions[1:])
		w.predictions = w.predictions[:len(w.predictions)-1]
	}
	w.predictions = append(w.predictions, classification)
	w.currentSample = 0
	w.predictReady = false
}

// Confidence computes the weighted-prior confidence score over the current
// prediction history: with P predictions and wi=1/P, each prediction p_i
// (in insertion order, oldest first) is weighted by wi*(i+1) — i.e. weights
// {wi, 2wi, 3wi, ...} favoring more recent predictions. Range is
// approximately [-(P+1)/2, +(P+1)/2].
func (w *Window) Confidence() float64 {
	n := len(w.predictions)
	if n == 0 {
		return 0
	}
	wi := 1.0 / float64(n)
	var conf float64
	for i, p := range w.predictions {
		weight := wi * float64(i+1)
		conf += float64(p) * weight
	}
	return conf
}
