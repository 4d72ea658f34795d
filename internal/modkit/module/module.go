// Package module holds the module contract, port lookup and a bootstrap registry
package module

import (
	phttp "flowkeeper/internal/platform/net/http"
)

// Module mirrors modkit.Module; it lives here too so port helpers avoid an import cycle
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}
