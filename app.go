package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/chazu/isoblob/pkg/config"
	"github.com/chazu/isoblob/pkg/field"
	"github.com/chazu/isoblob/pkg/mesh"
	"github.com/chazu/isoblob/pkg/pipeline"
	"github.com/chazu/isoblob/pkg/view"
	"github.com/go-gl/mathgl/mgl32"
)

// meshColor is the surface color sent to the frontend.
const meshColor = "#4A90D9"

// App is the host-facing backend. It runs the pipeline and exposes the
// result and the per-frame view transforms in JSON-friendly form.
type App struct {
	cfg *config.Config
	log *slog.Logger

	// Realtime paces the run on the configured frame clock instead of
	// yielding immediately between steps.
	Realtime bool

	viewer *view.Viewer
	side   int
}

// MeshData is the JSON-serializable mesh format sent to the frontend.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	Flat     bool      `json:"flat"`
	Color    string    `json:"color"`
}

// ProgressData is one progress report.
type ProgressData struct {
	Label    string  `json:"label"`
	Fraction float64 `json:"fraction"`
}

// GenerateResult is the full result returned to the frontend.
type GenerateResult struct {
	Mesh     *MeshData      `json:"mesh"`
	Progress []ProgressData `json:"progress"`
	Errors   []string       `json:"errors"`
	Seeded   int            `json:"seeded"`
	Steps    int            `json:"steps"`
}

// FrameData carries column-major matrices for one draw. MVP is the
// premultiplied Projection * View * Model.
type FrameData struct {
	Model      mgl32.Mat4    `json:"model"`
	View       mgl32.Mat4    `json:"view"`
	Projection mgl32.Mat4    `json:"projection"`
	MVP        mgl32.Mat4    `json:"mvp"`
	Viewport   view.Viewport `json:"viewport"`
}

// NewApp creates an App. A nil config means the embedded defaults and a nil
// logger means slog.Default.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	// With no initial spin the model stays put until input arrives.
	var rot view.RotationSource = view.Static{Q: mgl32.QuatIdent()}
	if cfg.Camera.SpinX != 0 || cfg.Camera.SpinY != 0 {
		sp := view.NewSpinner(cfg.Camera.Drag)
		sp.Spin(cfg.Camera.SpinX, cfg.Camera.SpinY)
		rot = sp
	}
	return &App{
		cfg:    cfg,
		log:    logger,
		viewer: &view.Viewer{Rotation: rot},
	}
}

// Generate seeds a field from seed and runs the whole pipeline.
func (a *App) Generate(ctx context.Context, seed int64) GenerateResult {
	return a.run(ctx, pipeline.Options{Rand: rand.New(rand.NewSource(seed))})
}

// GenerateFrom runs the pipeline on a caller-supplied density field instead
// of seeding one.
func (a *App) GenerateFrom(ctx context.Context, f *field.Field) GenerateResult {
	return a.run(ctx, pipeline.Options{Field: f})
}

func (a *App) run(ctx context.Context, opts pipeline.Options) GenerateResult {
	result := GenerateResult{
		Progress: []ProgressData{},
		Errors:   []string{},
	}

	cfg := *a.cfg
	if opts.Field != nil {
		cfg.Field.Size = opts.Field.Side()
	}
	logged := pipeline.LogReporter{Logger: a.log}
	opts.Config = &cfg
	opts.Logger = a.log
	opts.Reporter = pipeline.ReporterFunc(func(label string, fraction float64) {
		result.Progress = append(result.Progress, ProgressData{Label: label, Fraction: fraction})
		logged.Report(label, fraction)
	})

	run, err := pipeline.New(opts)
	if err != nil {
		a.log.Error("pipeline setup failed", "err", err)
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	var sched pipeline.Scheduler = pipeline.Immediate{}
	if a.Realtime {
		fs := pipeline.NewFrameScheduler(cfg.FrameInterval())
		defer fs.Stop()
		sched = fs
	}

	m, err := pipeline.DriveWithTimeout(ctx, run, sched, cfg.Host.Timeout)
	result.Seeded = run.Seeded()
	result.Steps = run.Steps()
	if err != nil {
		a.log.Error("generate failed", "err", err)
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	a.show(m, cfg.Field.Size)
	result.Mesh = toMeshData(m)
	return result
}

func (a *App) show(m *mesh.Mesh, side int) {
	a.viewer.Mesh = m
	a.viewer.Camera = view.NewCamera(a.cfg.Camera, side)
	a.side = side
}

// SetRenderer installs the backend that draws each frame.
func (a *App) SetRenderer(r view.Renderer) {
	a.viewer.Renderer = r
}

// Frame advances the rotation by one frame and draws the last generated
// mesh into a width x height viewport.
func (a *App) Frame(width, height int) (FrameData, error) {
	if a.side == 0 {
		return FrameData{}, fmt.Errorf("frame requested before a mesh was generated")
	}
	f, err := a.viewer.Frame(view.Viewport{Width: width, Height: height})
	if err != nil {
		return FrameData{}, err
	}
	return FrameData{Model: f.Model, View: f.View, Projection: f.Projection, MVP: f.MVP(), Viewport: f.Viewport}, nil
}

func toMeshData(m *mesh.Mesh) *MeshData {
	d := &MeshData{
		Vertices: m.Vertices,
		Normals:  m.Normals,
		Indices:  m.Indices,
		Flat:     m.Flat,
		Color:    meshColor,
	}
	// Keep empty meshes as [] rather than null in JSON.
	if d.Vertices == nil {
		d.Vertices = []float32{}
	}
	if d.Normals == nil {
		d.Normals = []float32{}
	}
	if d.Indices == nil {
		d.Indices = []uint32{}
	}
	return d
}
