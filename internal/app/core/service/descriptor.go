// Package service describes the application's modules for health and
// operational listings.
package service

// Layer describes where a module sits.
type Layer string

const (
	LayerAPI    Layer = "api"
	LayerWorker Layer = "worker"
)

// Descriptor advertises a module and what it can do. It does not change
// runtime behavior.
type Descriptor struct {
	Name         string   `json:"name"`
	Domain       string   `json:"domain"`
	Layer        Layer    `json:"layer"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// WithCapabilities returns a copy of the descriptor with additional
// capabilities appended.
func (d Descriptor) WithCapabilities(caps ...string) Descriptor {
	if len(caps) == 0 {
		return d
	}
	combined := make([]string, 0, len(d.Capabilities)+len(caps))
	combined = append(combined, d.Capabilities...)
	combined = append(combined, caps...)
	d.Capabilities = combined
	return d
}
