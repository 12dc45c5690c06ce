package state

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
)

type NyModule interface {
	Init(s *State) error
	Cleanup(s *State) error
}

// State access must be done only on a single Goroutine
type State struct {
	*Env
	Modules map[string]NyModule
	Round   int
}

// Env can be read from any Goroutine
type Env struct {
	DispatchChannel chan<- func(s *State) error
	Scenario
	Context  context.Context
	Cancel   context.CancelCauseFunc
	Log      *slog.Logger
	Out      io.Writer // receives the final report
	Started  atomic.Bool
	Stopping atomic.Bool
}
