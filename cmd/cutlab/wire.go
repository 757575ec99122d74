//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"github.com/google/wire"

	"github.com/emilyslouie/xri-two-hands/pkg/config"
)

func initializeApp(cfg *config.Config) (*App, error) {
	wire.Build(provideLogger, provideKernel, provideEngine, NewApp)
	return nil, nil
}
