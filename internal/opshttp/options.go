package opshttp

import (
	"net/http"

	"github.com/rwaddinsall/hcf2025/internal/health"
)

// DefaultPort is used when Options.Port is zero.
const DefaultPort = 9000

type Options struct {
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      health.Probe
	Readiness   health.Probe
	// Status, when set, is served at /-/status; the server uses it for
	// the loaded snapshot's metadata.
	Status       http.Handler
	UseRecoverMW bool
	OnPanic      func()
}
