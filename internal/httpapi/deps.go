package httpapi

import (
	"context"
	"sync/atomic"

	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/events"
	"jobwatch-engine/internal/poll"
	"jobwatch-engine/internal/state"
)

type Deps struct {
	Hub *events.Hub

	CfgVal *atomic.Value // stores config.Config

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	Runner *poll.Runner
	Store  state.Store

	// BaseCtx bounds runs started from the API; cancel it on shutdown.
	BaseCtx context.Context
}
