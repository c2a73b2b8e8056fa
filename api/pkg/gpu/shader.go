package gpu

import (
	"fmt"
	"os"
)

// ShaderSearchPaths are tried in order when no shader path is configured,
// covering source checkouts and the installed location.
var ShaderSearchPaths = []string{
	"../modules/sombrero/Sombrero.frag",
	"../../modules/sombrero/Sombrero.frag",
	"/usr/share/breezy-desktop/shaders/Sombrero.frag",
}

// ResolveShaderPath returns the configured path if it exists, otherwise the
// first search path that does.
func ResolveShaderPath(configured string) (string, error) {
	candidates := ShaderSearchPaths
	if configured != "" {
		candidates = append([]string{configured}, ShaderSearchPaths...)
	}
	for _, p := range candidates {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w (tried %v)", ErrShaderNotFound, candidates)
}

// Quad vertices as (x, y, u, v), drawn as two triangles.
var (
	quadVertices = []float32{
		-1, -1, 0, 0,
		1, -1, 1, 0,
		-1, 1, 0, 1,
		1, 1, 1, 1,
	}
	quadIndices = []uint32{0, 1, 2, 2, 1, 3}
)

const (
	attribPosition = 0
	attribTexCoord = 1

	screenTextureUniform = "screenTexture"
)

const vertexShaderSource = `#version 330 core
layout (location = 0) in vec2 aPos;
layout (location = 1) in vec2 aTexCoord;
out vec2 texCoord;

void main() {
    gl_Position = vec4(aPos, 0.0, 1.0);
    texCoord = aTexCoord;
}
`
