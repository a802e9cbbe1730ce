package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithCapabilitiesCopies(t *testing.T) {
	base := Descriptor{Name: "photos", Domain: "progress", Layer: LayerAPI, Capabilities: []string{"upload"}}
	extended := base.WithCapabilities("delete", "sign")

	assert.Equal(t, []string{"upload"}, base.Capabilities)
	assert.Equal(t, []string{"upload", "delete", "sign"}, extended.Capabilities)
	assert.Equal(t, base, base.WithCapabilities())
}
