package classifier

// Engine wires a Window to the closed-loop therapy policy: for
// every stream sample it appends to the window, runs the FFT classifier
// when the window says it's ready, and decides whether a StartStim/StopStim
// command should fire based on the classifier outcome and the running
// confidence score.
type Engine struct {
	window *Window

	lastSeizureDetected bool
}

// NewEngine returns an Engine driving a fresh Window with spec defaults.
func NewEngine() *Engine {
	return &Engine{window: New()}
}

// Step represents one closed-loop decision for a single stream sample.
type Step struct {
	Microvolts      float64
	SeizureDetected bool
	Score           float64
	Predicted       bool
	Confidence      float64
	StartTherapy    bool
	StopTherapy     bool
}

// Step feeds one stream sample's microvolt reading through the window and
// classifier, returning the decision for this sample. isStimming reflects
// the session's current therapy state at the time of the call.
func (e *Engine) Step(microvolts float64, isStimming bool) Step {
	e.window.Add(microvolts)

	seizureDetected, score, predicted := e.window.Predict()
	if predicted {
		e.lastSeizureDetected = seizureDetected
	}

	conf := e.window.Confidence()

	result := Step{
		Microvolts:      microvolts,
		SeizureDetected: e.lastSeizureDetected,
		Score:           score,
		Predicted:       predicted,
		Confidence:      conf,
	}
	if e.lastSeizureDetected && conf > 0 && !isStimming {
		result.StartTherapy = true
	}
	if !e.lastSeizureDetected && conf < 0 && isStimming {
		result.StopTherapy = true
	}
	return result
}

// Window exposes the underlying sliding window (read-only use by callers
// such as tests and metrics).
func (e *Engine) Window() *Window { return e.window }
