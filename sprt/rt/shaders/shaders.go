package shaders

import (
	_ "embed"
	"strconv"
	"strings"
)

//go:embed mesh.wgsl
var MeshWGSL string

//go:embed shadow.wgsl
var ShadowWGSL string

//go:embed overlay.wgsl
var OverlayWGSL string

// Mesh returns the main shader with the light array shape filled in.
func Mesh(lightStride uint64, maxLights uint32) string {
	r := strings.NewReplacer(
		"{{LIGHT_STRIDE}}", strconv.FormatUint(lightStride, 10),
		"{{MAX_LIGHTS}}", strconv.FormatUint(uint64(maxLights), 10),
	)
	return r.Replace(MeshWGSL)
}
