package httpapi

import (
	"context"
	"sync/atomic"

	"econstats-engine/internal/config"
	"econstats-engine/internal/events"
	"econstats-engine/internal/pipeline"
	"econstats-engine/internal/store"
)

// Runner is the part of pipeline.Runner the API drives.
type Runner interface {
	Start(ctx context.Context, name pipeline.Name) (store.Run, error)
	Status() pipeline.Status
}

type Deps struct {
	DB  *store.DB
	Hub *events.Hub

	Runner Runner
	// BaseCtx outlives individual requests; runs started over HTTP use it.
	BaseCtx context.Context

	CfgVal      *atomic.Value // stores config.Config
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	SetAPIKey    func(source, key string) error
	DeleteAPIKey func(source string) error
}
