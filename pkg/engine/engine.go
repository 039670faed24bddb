// Package engine runs the synthesis pipeline: label sequence to targets,
// targets to chosen instances, instances to one waveform.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/haivivi/unitsynth/pkg/audio/pcm"
	"github.com/haivivi/unitsynth/pkg/audio/resampler"
	"github.com/haivivi/unitsynth/pkg/choose"
	"github.com/haivivi/unitsynth/pkg/corpus"
	"github.com/haivivi/unitsynth/pkg/synth"
	"github.com/haivivi/unitsynth/pkg/typeme"
)

var tracer = otel.Tracer("github.com/haivivi/unitsynth/pkg/engine")

// MissingPolicy decides what happens to a target with no candidate.
type MissingPolicy string

const (
	MissingFail    MissingPolicy = "fail"
	MissingSkip    MissingPolicy = "skip"
	MissingSilence MissingPolicy = "silence"
)

// SilenceDuration is the length of the silence substituted under
// MissingSilence.
const SilenceDuration = 50 * time.Millisecond

// ErrInvalidMissingPolicy is returned for an unknown missing policy name.
var ErrInvalidMissingPolicy = errors.New("engine: invalid missing policy")

// ParseMissingPolicy resolves a policy name; "" selects MissingFail.
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch p := MissingPolicy(s); p {
	case "":
		return MissingFail, nil
	case MissingFail, MissingSkip, MissingSilence:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMissingPolicy, s)
}

// Inventory is what the engine needs from a corpus inventory.
type Inventory interface {
	choose.Inventory
	Audio(ctx context.Context, in corpus.Instance) (*corpus.InstanceAudio, error)
}

// Config configures an Engine.
type Config struct {
	Strategy choose.Strategy
	Tree     *typeme.Tree
	Synth    synth.Options
	Missing  MissingPolicy

	// SampleRate is the output rate. Zero uses the rate of the first chosen
	// unit.
	SampleRate int

	Logger *slog.Logger
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Strategy: choose.DefaultStrategy,
		Synth:    synth.DefaultOptions(),
		Missing:  MissingFail,
	}
}

// Engine synthesises label sequences from one inventory.
type Engine struct {
	inv     Inventory
	sel     *choose.Selector
	opts    synth.Options
	missing MissingPolicy
	rate    int
	logger  *slog.Logger
}

// New validates cfg and returns an Engine. Configuration errors, including
// an overlap outside [0, 1], are reported here before any audio is read.
func New(inv Inventory, cfg Config) (*Engine, error) {
	if err := cfg.Synth.Validate(); err != nil {
		return nil, err
	}
	missing, err := ParseMissingPolicy(string(cfg.Missing))
	if err != nil {
		return nil, err
	}
	if cfg.SampleRate < 0 {
		return nil, fmt.Errorf("engine: invalid sample rate %d", cfg.SampleRate)
	}
	sel, err := choose.New(inv, choose.Config{Strategy: cfg.Strategy, Tree: cfg.Tree})
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		inv:     inv,
		sel:     sel,
		opts:    cfg.Synth,
		missing: missing,
		rate:    cfg.SampleRate,
		logger:  logger,
	}, nil
}

// Unit is one planned position.
type Unit struct {
	Target   choose.Target
	Instance corpus.Instance

	// Silence marks a target with no candidate rendered as silence.
	Silence bool
}

// Plan is the result of selection.
type Plan struct {
	ID    string
	Units []Unit

	// Skipped counts targets dropped under MissingSkip.
	Skipped int
}

// Plan chooses one instance per label.
func (e *Engine) Plan(ctx context.Context, labels []string) (*Plan, error) {
	plan := &Plan{ID: uuid.New().String()}
	_, span := tracer.Start(ctx, "engine.select", trace.WithAttributes(
		attribute.String("run.id", plan.ID),
		attribute.String("strategy", string(e.sel.Strategy())),
		attribute.Int("targets", len(labels)),
	))
	defer span.End()

	for _, target := range choose.Targets(labels) {
		in, err := e.sel.Choose(target)
		if err != nil {
			if !errors.Is(err, choose.ErrNoCandidate) || e.missing == MissingFail {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			e.logger.Warn("no candidate", "run", plan.ID, "target", target.String(), "policy", string(e.missing))
			if e.missing == MissingSkip {
				plan.Skipped++
				continue
			}
			plan.Units = append(plan.Units, Unit{Target: target, Silence: true})
			continue
		}
		e.logger.Debug("chose unit",
			"run", plan.ID,
			"target", target.String(),
			"word", in.Word,
			"interval", in.Interval,
			"intonation", in.Intonation,
		)
		plan.Units = append(plan.Units, Unit{Target: target, Instance: in})
	}
	span.SetAttributes(attribute.Int("units", len(plan.Units)), attribute.Int("skipped", plan.Skipped))
	return plan, nil
}

// Result is a rendered waveform.
type Result struct {
	ID         string
	Samples    []float32
	SampleRate int
	Units      int
}

// Duration returns the length of the waveform.
func (r *Result) Duration() time.Duration {
	if r.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(r.Samples)) * time.Second / time.Duration(r.SampleRate)
}

// Render slices and concatenates the audio of a plan.
func (e *Engine) Render(ctx context.Context, plan *Plan) (*Result, error) {
	ctx, span := tracer.Start(ctx, "engine.render", trace.WithAttributes(
		attribute.String("run.id", plan.ID),
		attribute.Int("units", len(plan.Units)),
		attribute.Bool("crossfade", e.opts.Crossfade),
		attribute.Float64("overlap", e.opts.Overlap),
	))
	defer span.End()

	res, err := e.render(ctx, plan)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("samples", len(res.Samples)), attribute.Int("sample_rate", res.SampleRate))
	return res, nil
}

func (e *Engine) render(ctx context.Context, plan *Plan) (*Result, error) {
	b, err := synth.NewBuilder(e.opts)
	if err != nil {
		return nil, err
	}
	audio := make([]*corpus.InstanceAudio, len(plan.Units))
	rate := e.rate
	for i, u := range plan.Units {
		if u.Silence {
			continue
		}
		a, err := e.inv.Audio(ctx, u.Instance)
		if err != nil {
			return nil, fmt.Errorf("engine: audio of %s in %q: %w", u.Target.Phoneme, u.Instance.Word, err)
		}
		audio[i] = a
		if rate == 0 {
			rate = a.SampleRate
		}
	}
	if rate == 0 {
		rate = pcm.L16Mono16K.SampleRate()
	}

	for i, u := range plan.Units {
		if u.Silence {
			b.AppendSilence(silenceSamples(rate))
			continue
		}
		samples := audio[i].Samples
		if audio[i].SampleRate != rate {
			samples, err = resampler.Convert(samples, audio[i].SampleRate, rate)
			if err != nil {
				return nil, err
			}
		}
		b.Append(samples)
	}
	return &Result{ID: plan.ID, Samples: b.Samples(), SampleRate: rate, Units: b.Units()}, nil
}

func silenceSamples(rate int) int {
	if f, err := pcm.FormatFor(rate); err == nil {
		return int(f.SamplesInDuration(SilenceDuration))
	}
	return int(int64(rate) * int64(SilenceDuration) / int64(time.Second))
}

// Synthesize plans and renders labels.
func (e *Engine) Synthesize(ctx context.Context, labels []string) (*Result, error) {
	plan, err := e.Plan(ctx, labels)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := e.Render(ctx, plan)
	if err != nil {
		return nil, err
	}
	e.logger.Info("synthesized",
		"run", res.ID,
		"units", res.Units,
		"skipped", plan.Skipped,
		"duration", res.Duration(),
		"elapsed", time.Since(start),
	)
	return res, nil
}
