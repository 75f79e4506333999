// SPDX-License-Identifier: MIT

package daemon

import (
	"errors"
	"net"
	"net/http"

	"github.com/rs/zerolog"
)

var (
	ErrMissingLogger     = errors.New("daemon: logger is required")
	ErrMissingAPIHandler = errors.New("daemon: API handler is required")
	ErrMissingManager    = errors.New("daemon: manager is required")
	ErrManagerNotStarted = errors.New("daemon: manager not started")
)

// Deps are the collaborators a Manager serves.
type Deps struct {
	Logger zerolog.Logger
	// APIHandler serves /api/v1, the health probes and /metrics.
	APIHandler http.Handler
	// OnListen, when set, receives the bound address once the listener is open.
	OnListen func(net.Addr)
}

func (d *Deps) Validate() error {
	switch {
	case d.Logger.GetLevel() == zerolog.Disabled:
		return ErrMissingLogger
	case d.APIHandler == nil:
		return ErrMissingAPIHandler
	}
	return nil
}
