// Package pipeline runs seeding, diffusion, isosurface extraction and mesh
// assembly as one cooperative task. Each call to Run.Step performs a bounded
// unit of work and returns, so a host frame loop can interleave the run with
// rendering; Drive is the loop for hosts that only want the result.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/chazu/isoblob/pkg/config"
	"github.com/chazu/isoblob/pkg/diffuse"
	"github.com/chazu/isoblob/pkg/extract"
	"github.com/chazu/isoblob/pkg/extract/sdfx"
	"github.com/chazu/isoblob/pkg/field"
	"github.com/chazu/isoblob/pkg/mesh"
)

// Phase is the stage a run is in.
type Phase int

const (
	Seeding Phase = iota
	Smoothing
	Extracting
	Centering
	Normals
	Done
	Failed
)

func (p Phase) String() string {
	switch p {
	case Seeding:
		return "seeding"
	case Smoothing:
		return "smoothing"
	case Extracting:
		return "extracting"
	case Centering:
		return "centering"
	case Normals:
		return "normals"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Label is the human-readable progress label for the phase.
func (p Phase) Label() string {
	switch p {
	case Seeding:
		return "Seeding density..."
	case Smoothing:
		return "Smoothing density..."
	case Extracting:
		return "Generating isosurface..."
	case Centering:
		return "Centering mesh..."
	case Normals:
		return "Calculating mesh normals..."
	case Done:
		return "Done."
	case Failed:
		return "Failed."
	default:
		return p.String()
	}
}

// ExtractorFunc builds the extractor for a smoothed field.
type ExtractorFunc func(f *field.Field, cfg *config.Config) (extract.Extractor, error)

// SdfxExtractor is the default ExtractorFunc, backed by sdfx marching cubes.
func SdfxExtractor(f *field.Field, cfg *config.Config) (extract.Extractor, error) {
	return sdfx.New(f, cfg.Extraction.Isovalue, sdfx.Options{
		Slabs:   cfg.Extraction.Slabs,
		Indexed: cfg.Extraction.Indexed,
	})
}

// Options configures a Run. Only Config is required.
type Options struct {
	Config *config.Config
	// Rand is the seeding source. Defaults to a source seeded from the clock.
	Rand *rand.Rand
	// Field, if set, replaces seeding: the run starts smoothing a copy of it.
	Field *field.Field
	// Extractor defaults to SdfxExtractor.
	Extractor ExtractorFunc
	Reporter  Reporter
	Logger    *slog.Logger
	// Clock defaults to time.Now; it drives the extraction budget.
	Clock func() time.Time
}

// Run is one pass through the pipeline. It is not safe for concurrent use:
// a single host loop owns it and calls Step repeatedly.
type Run struct {
	cfg      *config.Config
	rng      *rand.Rand
	initial  *field.Field
	newExt   ExtractorFunc
	reporter Reporter
	log      *slog.Logger
	clock    func() time.Time

	phase    Phase
	err      error
	seeded   int
	diffuser *diffuse.Diffuser
	smoothed *field.Field
	driver   *extract.Driver
	raw      *mesh.RawMesh
	result   *mesh.Mesh
	steps    int
}

// New validates opts and returns a run in the Seeding phase.
func New(opts Options) (*Run, error) {
	if opts.Config == nil {
		return nil, errors.New("pipeline: config is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	r := &Run{
		cfg:      opts.Config,
		rng:      opts.Rand,
		initial:  opts.Field,
		newExt:   opts.Extractor,
		reporter: opts.Reporter,
		log:      opts.Logger,
		clock:    opts.Clock,
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if r.newExt == nil {
		r.newExt = SdfxExtractor
	}
	if r.reporter == nil {
		r.reporter = Nop{}
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	return r, nil
}

// Phase returns the current phase.
func (r *Run) Phase() Phase { return r.phase }

// Err returns the terminal error of a failed run.
func (r *Run) Err() error { return r.err }

// Steps returns how many times Step has done work.
func (r *Run) Steps() int { return r.steps }

// Seeded returns the number of accepted seed draws.
func (r *Run) Seeded() int { return r.seeded }

// Smoothed returns the field after the last diffusion pass, or nil before
// extraction has started.
func (r *Run) Smoothed() *field.Field { return r.smoothed }

// Driver returns the extraction driver once extraction has started.
func (r *Run) Driver() *extract.Driver { return r.driver }

// Result returns the finished mesh.
func (r *Run) Result() (*mesh.Mesh, error) {
	switch r.phase {
	case Done:
		return r.result, nil
	case Failed:
		return nil, r.err
	default:
		return nil, fmt.Errorf("pipeline: result requested in phase %s", r.phase)
	}
}

// Step performs one bounded unit of work and reports whether the run has
// finished. A failed run returns its error on every call; no partial mesh
// survives a failure.
func (r *Run) Step() (done bool, err error) {
	switch r.phase {
	case Done:
		return true, nil
	case Failed:
		return true, r.err
	}

	defer func() {
		if p := recover(); p != nil {
			err = r.fail(panicError(p))
			done = true
		}
	}()

	r.steps++
	if err := r.advance(); err != nil {
		return true, r.fail(err)
	}
	return r.phase == Done, nil
}

// Abort ends a run that has not finished, for example when its context is
// cancelled between steps.
func (r *Run) Abort(cause error) error {
	if r.phase == Done || r.phase == Failed {
		return r.err
	}
	return r.fail(cause)
}

func (r *Run) advance() error {
	switch r.phase {
	case Seeding:
		return r.seed()
	case Smoothing:
		return r.smooth()
	case Extracting:
		return r.extract()
	case Centering:
		r.raw.Positions = mesh.Center(r.raw.Positions, r.smoothed.Side())
		r.enter(Normals, 0)
		return nil
	case Normals:
		m, err := mesh.Finish(r.raw, r.cfg.NormalStrategy(), r.log)
		if err != nil {
			return err
		}
		r.result = m
		r.raw = nil
		r.log.Info("pipeline done",
			"vertices", m.VertexCount(), "triangles", m.TriangleCount(), "steps", r.steps)
		r.enter(Done, 1)
		return nil
	}
	return fmt.Errorf("pipeline: no work in phase %s", r.phase)
}

func (r *Run) seed() error {
	var f *field.Field
	if r.initial != nil {
		f = r.initial
		r.log.Debug("using supplied field", "side", f.Side())
	} else {
		f = field.New(r.cfg.Field.Size)
		r.seeded = field.Seed(f, r.rng, r.cfg.SeedParams())
		r.log.Debug("field seeded", "side", f.Side(), "accepted", r.seeded)
	}
	r.diffuser = diffuse.New(f)
	r.initial = nil
	r.enter(Smoothing, 0)
	return nil
}

func (r *Run) smooth() error {
	total := r.cfg.Diffusion.Passes
	if r.diffuser.Passes() < total {
		r.diffuser.Pass()
		r.reporter.Report(Smoothing.Label(), float64(r.diffuser.Passes())/float64(total))
		return nil
	}

	r.smoothed = r.diffuser.Field()
	r.diffuser = nil
	ext, err := r.newExt(r.smoothed, r.cfg)
	if err != nil {
		return fmt.Errorf("pipeline: creating extractor: %w", err)
	}
	r.driver = extract.NewDriver(ext,
		extract.WithBudget(r.cfg.Extraction.Budget),
		extract.WithClock(r.clock),
		extract.WithLogger(r.log),
		extract.WithProgress(func(f float64) {
			r.reporter.Report(Extracting.Label(), f)
		}),
	)
	r.enter(Extracting, 0)
	return nil
}

func (r *Run) extract() error {
	state, err := r.driver.Resume()
	switch state {
	case extract.Failed:
		return fmt.Errorf("pipeline: %w", err)
	case extract.Done:
		raw, err := r.driver.Mesh()
		if err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
		r.raw = raw
		r.enter(Centering, 0)
	}
	return nil
}

func (r *Run) enter(p Phase, fraction float64) {
	r.phase = p
	r.log.Debug("pipeline phase", "phase", p.String())
	r.reporter.Report(p.Label(), fraction)
}

func (r *Run) fail(cause error) error {
	r.err = cause
	r.phase = Failed
	r.raw = nil
	r.result = nil
	r.log.Error("pipeline failed", "err", cause)
	r.reporter.Report(Failed.Label(), 0)
	return cause
}

// panicError converts a recovered panic into an error, keeping bounds errors
// inspectable with errors.As.
func panicError(p any) error {
	switch v := p.(type) {
	case *field.BoundsError:
		return fmt.Errorf("pipeline: %w", v)
	case *mesh.BoundsError:
		return fmt.Errorf("pipeline: %w", v)
	case error:
		return fmt.Errorf("pipeline: panic: %w", v)
	default:
		return fmt.Errorf("pipeline: panic: %v", v)
	}
}
