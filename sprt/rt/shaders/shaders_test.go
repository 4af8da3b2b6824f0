package shaders

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMesh_FillsLightArray(t *testing.T) {
	src := Mesh(256, 16)
	assert.Contains(t, src, "@size(256) light: Light")
	assert.Contains(t, src, "const MAX_LIGHTS: u32 = 16u;")
	assert.False(t, strings.Contains(src, "{{"), "no placeholders left")
}

func TestEmbedded(t *testing.T) {
	for name, src := range map[string]string{"shadow": ShadowWGSL, "overlay": OverlayWGSL} {
		if !strings.Contains(src, "fn vs_main") {
			t.Errorf("%s shader has no vertex entry point", name)
		}
	}
}
