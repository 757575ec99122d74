package main

import (
	"go.uber.org/zap"

	"github.com/emilyslouie/xri-two-hands/pkg/config"
	"github.com/emilyslouie/xri-two-hands/pkg/engine"
	"github.com/emilyslouie/xri-two-hands/pkg/kernel"
	"github.com/emilyslouie/xri-two-hands/pkg/kernel/sdfx"
	"github.com/emilyslouie/xri-two-hands/pkg/logging"
)

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log.Level)
}

func provideKernel(cfg *config.Config) kernel.Kernel {
	return sdfx.New(cfg.Kernel.MeshCells)
}

func provideEngine(cfg *config.Config, log *zap.Logger) *engine.Engine {
	return engine.NewEngine(engine.WithTimeout(cfg.Engine.Timeout), engine.WithLogger(log))
}
