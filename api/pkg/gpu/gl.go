package gpu

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"
)

const (
	glNoError          = 0
	glTriangles        = 0x0004
	glUnsignedInt      = 0x1405
	glFloat            = 0x1406
	glTexture2D        = 0x0DE1
	glLinear           = 0x2601
	glTextureMagFilter = 0x2800
	glTextureMinFilter = 0x2801
	glTextureWrapS     = 0x2802
	glTextureWrapT     = 0x2803
	glColorBufferBit   = 0x4000
	glClampToEdge      = 0x812F
	glTexture0         = 0x84C0
	glArrayBuffer      = 0x8892
	glElementArrayBuf  = 0x8893
	glStaticDraw       = 0x88E4
	glFragmentShader   = 0x8B30
	glVertexShader     = 0x8B31
	glCompileStatus    = 0x8B81
	glLinkStatus       = 0x8B82
	glInfoLogLength    = 0x8B84
	glFalse            = 0
)

// gl holds the OpenGL 3.3 core entry points the warp pass uses.
type gl struct {
	Viewport                func(x, y, w, h int32)
	ClearColor              func(r, g, b, a float32)
	Clear                   func(mask uint32)
	Finish                  func()
	GetError                func() uint32
	GenTextures             func(n int32, textures *uint32)
	DeleteTextures          func(n int32, textures *uint32)
	BindTexture             func(target, texture uint32)
	ActiveTexture           func(texture uint32)
	TexParameteri           func(target, pname uint32, param int32)
	CreateShader            func(kind uint32) uint32
	ShaderSource            func(shader uint32, count int32, sources **byte, lengths *int32)
	CompileShader           func(shader uint32)
	GetShaderiv             func(shader, pname uint32, params *int32)
	GetShaderInfoLog        func(shader uint32, size int32, length *int32, log *byte)
	DeleteShader            func(shader uint32)
	CreateProgram           func() uint32
	AttachShader            func(program, shader uint32)
	LinkProgram             func(program uint32)
	GetProgramiv            func(program, pname uint32, params *int32)
	GetProgramInfoLog       func(program uint32, size int32, length *int32, log *byte)
	DeleteProgram           func(program uint32)
	UseProgram              func(program uint32)
	GetUniformLocation      func(program uint32, name string) int32
	Uniform1i               func(location, v int32)
	Uniform1f               func(location int32, v float32)
	Uniform2f               func(location int32, x, y float32)
	Uniform3f               func(location int32, x, y, z float32)
	Uniform4f               func(location int32, x, y, z, w float32)
	UniformMatrix4fv        func(location, count int32, transpose uint8, value *float32)
	GenVertexArrays         func(n int32, arrays *uint32)
	DeleteVertexArrays      func(n int32, arrays *uint32)
	BindVertexArray         func(array uint32)
	GenBuffers              func(n int32, buffers *uint32)
	DeleteBuffers           func(n int32, buffers *uint32)
	BindBuffer              func(target, buffer uint32)
	BufferData              func(target uint32, size int, data unsafe.Pointer, usage uint32)
	VertexAttribPointer     func(index uint32, size int32, kind uint32, normalized uint8, stride int32, offset uintptr)
	EnableVertexAttribArray func(index uint32)
	DrawElements            func(mode uint32, count int32, kind uint32, indices uintptr)
	EGLImageTargetTexture2D func(target uint32, image uintptr)
}

// loadGL binds GL functions from libOpenGL (GLVND) or libGL, falling back to
// eglGetProcAddress for anything the library doesn't export directly.
func loadGL(e *egl) (*gl, error) {
	lib, err := openLibrary("libOpenGL.so.0", "libGL.so.1")
	if err != nil {
		return nil, err
	}

	g := &gl{}
	symbols := map[string]any{
		"glViewport":                   &g.Viewport,
		"glClearColor":                 &g.ClearColor,
		"glClear":                      &g.Clear,
		"glFinish":                     &g.Finish,
		"glGetError":                   &g.GetError,
		"glGenTextures":                &g.GenTextures,
		"glDeleteTextures":             &g.DeleteTextures,
		"glBindTexture":                &g.BindTexture,
		"glActiveTexture":              &g.ActiveTexture,
		"glTexParameteri":              &g.TexParameteri,
		"glCreateShader":               &g.CreateShader,
		"glShaderSource":               &g.ShaderSource,
		"glCompileShader":              &g.CompileShader,
		"glGetShaderiv":                &g.GetShaderiv,
		"glGetShaderInfoLog":           &g.GetShaderInfoLog,
		"glDeleteShader":               &g.DeleteShader,
		"glCreateProgram":              &g.CreateProgram,
		"glAttachShader":               &g.AttachShader,
		"glLinkProgram":                &g.LinkProgram,
		"glGetProgramiv":               &g.GetProgramiv,
		"glGetProgramInfoLog":          &g.GetProgramInfoLog,
		"glDeleteProgram":              &g.DeleteProgram,
		"glUseProgram":                 &g.UseProgram,
		"glGetUniformLocation":         &g.GetUniformLocation,
		"glUniform1i":                  &g.Uniform1i,
		"glUniform1f":                  &g.Uniform1f,
		"glUniform2f":                  &g.Uniform2f,
		"glUniform3f":                  &g.Uniform3f,
		"glUniform4f":                  &g.Uniform4f,
		"glUniformMatrix4fv":           &g.UniformMatrix4fv,
		"glGenVertexArrays":            &g.GenVertexArrays,
		"glDeleteVertexArrays":         &g.DeleteVertexArrays,
		"glBindVertexArray":            &g.BindVertexArray,
		"glGenBuffers":                 &g.GenBuffers,
		"glDeleteBuffers":              &g.DeleteBuffers,
		"glBindBuffer":                 &g.BindBuffer,
		"glBufferData":                 &g.BufferData,
		"glVertexAttribPointer":        &g.VertexAttribPointer,
		"glEnableVertexAttribArray":    &g.EnableVertexAttribArray,
		"glDrawElements":               &g.DrawElements,
		"glEGLImageTargetTexture2DOES": &g.EGLImageTargetTexture2D,
	}

	for name, fptr := range symbols {
		if sym, err := purego.Dlsym(lib, name); err == nil {
			purego.RegisterFunc(fptr, sym)
			continue
		}
		addr := e.GetProcAddress(name)
		if addr == 0 {
			return nil, fmt.Errorf("GL function %s not available", name)
		}
		purego.RegisterFunc(fptr, addr)
	}
	return g, nil
}

func (g *gl) checkError(op string) error {
	if code := g.GetError(); code != glNoError {
		return fmt.Errorf("%s: GL error %#x", op, code)
	}
	return nil
}
