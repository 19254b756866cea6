package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nzoschke/musicagent/pkg/audio"
	"github.com/nzoschke/musicagent/pkg/classify"
	"github.com/nzoschke/musicagent/pkg/corpus"
	"github.com/nzoschke/musicagent/pkg/features"
	"github.com/nzoschke/musicagent/pkg/insight"
	"github.com/nzoschke/musicagent/pkg/logging"
	"github.com/sirupsen/logrus"
)

// ErrAnalysisFailed wraps every failed run.
var ErrAnalysisFailed = errors.New("analysis failed")

// State is the phase of a run.
type State string

const (
	StateIdle      State = "idle"
	StateObserving State = "observing"
	StateThinking  State = "thinking"
	StateDeciding  State = "deciding"
	StateActing    State = "acting"
	StateError     State = "error"
)

// StateMessage is the progress text shown for s.
func StateMessage(s State) string {
	switch s {
	case StateObserving:
		return "Analyzing audio waveforms..."
	case StateThinking:
		return "Extracting musical features..."
	case StateDeciding:
		return "Running ML classification..."
	case StateActing:
		return "Generating comprehensive insights..."
	default:
		return "Processing..."
	}
}

// ProgressFunc receives each state the agent enters.
type ProgressFunc func(State)

// Decoder turns an uploaded payload into samples.
type Decoder interface {
	Decode(ctx context.Context, data []byte) (*audio.Decoded, error)
}

// Options configures an Agent. Corpus and Model are shared read-only.
type Options struct {
	Corpus  corpus.Corpus
	Model   classify.Model // nil uses the rule based fallback
	Decoder Decoder        // nil uses audio.Decoder
	Logger  *logrus.Entry
	Now     func() time.Time
}

// Agent runs the observe, think, decide, act pipeline. Runs on one Agent are
// serialised.
type Agent struct {
	corpus  corpus.Corpus
	model   classify.Model
	decoder Decoder
	log     *logrus.Entry
	now     func() time.Time

	mu      sync.Mutex // held for a whole run
	stateMu sync.RWMutex
	state   State
}

// New returns an idle Agent.
func New(opts Options) *Agent {
	a := &Agent{
		corpus:  opts.Corpus,
		model:   opts.Model,
		decoder: opts.Decoder,
		log:     opts.Logger,
		now:     opts.Now,
		state:   StateIdle,
	}
	if a.decoder == nil {
		a.decoder = audio.Decoder{}
	}
	if a.log == nil {
		a.log = logging.Zone("analysis")
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// State returns the current phase.
func (a *Agent) State() State {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.state
}

func (a *Agent) enter(s State, onProgress ProgressFunc) {
	a.stateMu.Lock()
	a.state = s
	a.stateMu.Unlock()
	if onProgress != nil {
		onProgress(s)
	}
}

// Run analyses one payload. name labels the result and logs. On failure the
// agent passes through StateError back to StateIdle and no result is
// returned.
func (a *Agent) Run(ctx context.Context, name string, data []byte, onProgress ProgressFunc) (*Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	log := a.log.WithField("file", name)
	start := time.Now()

	res, err := a.run(ctx, name, data, onProgress)
	if err != nil {
		a.enter(StateError, onProgress)
		log.WithError(err).Error("analysis failed")
		a.enter(StateIdle, onProgress)
		return nil, fmt.Errorf("%w: %s: %w", ErrAnalysisFailed, name, err)
	}
	a.enter(StateIdle, onProgress)

	log.WithFields(logrus.Fields{
		"genre":      res.Genre,
		"subgenre":   res.Subgenre,
		"confidence": res.Confidence,
		"elapsed":    time.Since(start).Round(time.Millisecond),
	}).Info("analysis complete")
	return res, nil
}

func (a *Agent) run(ctx context.Context, name string, data []byte, onProgress ProgressFunc) (*Result, error) {
	a.enter(StateObserving, onProgress)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	decoded, err := a.decoder.Decode(ctx, data)
	if err != nil {
		return nil, err
	}
	env, err := features.Observe(decoded)
	if err != nil {
		return nil, err
	}

	a.enter(StateThinking, onProgress)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	desc := features.Derive(env)
	a.log.WithField("file", name).WithFields(logrus.Fields{
		"tempo":  desc.Tempo,
		"energy": desc.Energy,
	}).Debug("descriptors")

	a.enter(StateDeciding, onProgress)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dec, err := classify.Decide(ctx, desc, a.corpus, a.model)
	if err != nil {
		return nil, err
	}

	a.enter(StateActing, onProgress)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Result{
		File:            name,
		Tags:            audio.ReadTags(data),
		Duration:        decoded.Duration,
		SampleRate:      decoded.SampleRate,
		AnalyzedAt:      a.now().UTC(),
		Decision:        dec,
		Characteristics: desc,
		Insights:        insight.Score(desc, dec),
		Spectrum:        features.AnalyzeSpectrum(decoded),
		Waveform:        GenerateWaveform(decoded.Samples, decoded.SampleRate, WaveformPixelsPerSec),
	}, nil
}
