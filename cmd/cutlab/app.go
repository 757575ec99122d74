package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/emilyslouie/xri-two-hands/pkg/engine"
	"github.com/emilyslouie/xri-two-hands/pkg/graph"
	"github.com/emilyslouie/xri-two-hands/pkg/kernel"
	"github.com/emilyslouie/xri-two-hands/pkg/tessellate"
)

// App runs cut scripts through the evaluate, tessellate and cut pipeline.
type App struct {
	engine *engine.Engine
	kernel kernel.Kernel
	log    *zap.Logger
}

// SceneResult is the outcome of one script run. When Errors is non-empty
// Graph and Meshes are nil.
type SceneResult struct {
	Graph    *graph.SceneGraph
	Meshes   []*kernel.Mesh
	Errors   []engine.EvalError
	Warnings []engine.EvalWarning
}

// NewApp returns an App over the given engine and kernel.
func NewApp(eng *engine.Engine, k kernel.Kernel, log *zap.Logger) *App {
	return &App{engine: eng, kernel: k, log: log}
}

// Evaluate turns source into cut fragments. Script errors are reported in
// the result; the returned error is for fatal failures such as a timeout
// or a kernel error.
//
// ctx is checked before the script runs and bounds tessellation. The
// script itself is bounded by the engine timeout.
func (a *App) Evaluate(ctx context.Context, source string) (SceneResult, error) {
	if err := ctx.Err(); err != nil {
		return SceneResult{}, err
	}
	res, err := a.engine.EvaluateFull(source)
	if err != nil {
		return SceneResult{}, err
	}
	out := SceneResult{Errors: res.Errors, Warnings: res.Warnings}
	for _, w := range res.Warnings {
		a.log.Warn("script warning", zap.Int("line", w.Line), zap.String("message", w.Message))
	}
	if len(res.Errors) > 0 {
		return out, nil
	}

	meshes, err := tessellate.Tessellate(ctx, res.Graph, a.kernel, tessellate.WithLogger(a.log))
	if err != nil {
		return SceneResult{}, err
	}
	out.Graph = res.Graph
	out.Meshes = meshes

	a.log.Info("scene evaluated",
		zap.Uint64("version", res.Graph.Version),
		zap.Int("nodes", res.Graph.NodeCount()),
		zap.Int("fragments", len(meshes)),
	)
	return out, nil
}
