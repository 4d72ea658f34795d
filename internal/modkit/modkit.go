package modkit

import (
	phttp "flowkeeper/internal/platform/net/http"
)

// Module is the surface every service module exposes to cmd wiring
type Module interface {
	// MountRoutes mounts the module's HTTP routes, if any
	MountRoutes(r phttp.Router)
	// Ports returns the module's port set for cross wiring
	Ports() any
	// Name returns the module name used in logs and the registry
	Name() string
}
