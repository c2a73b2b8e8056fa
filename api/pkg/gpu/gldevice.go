package gpu

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"unsafe"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/breezy-desktop/xr-renderer/api/pkg/dmabuf"
)

// glDevice is the EGL + OpenGL 3.3 core implementation of Device.
type glDevice struct {
	cfg Config
	ws  windowSystem
	egl *egl
	gl  *gl
	log zerolog.Logger

	display uintptr
	config  uintptr
	context uintptr
	surface uintptr

	program    uint32
	shaderPath string
	locations  map[string]int32

	vao, vbo, ebo uint32
}

// New creates the device for cfg.Backend and makes its context current on
// the calling thread. The caller must have locked the goroutine to its OS
// thread and must make every later call from it.
func New(cfg Config) (Device, error) {
	d := &glDevice{
		cfg:       cfg,
		log:       log.With().Str("component", "gpu").Str("backend", string(cfg.Backend)).Logger(),
		locations: make(map[string]int32),
	}
	if err := d.init(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func (d *glDevice) init() error {
	ws, err := newWindowSystem(d.cfg)
	if err != nil {
		return fmt.Errorf("failed to create window system: %w", err)
	}
	d.ws = ws

	e, err := loadEGL()
	if err != nil {
		return err
	}
	d.egl = e

	d.display = e.GetDisplay(ws.nativeDisplay())
	if d.display == 0 {
		return e.errorf("eglGetDisplay")
	}
	var major, minor int32
	if e.Initialize(d.display, &major, &minor) == 0 {
		d.display = 0
		return e.errorf("eglInitialize")
	}
	if !e.hasExtension(d.display, eglDMABufImportExt) {
		return fmt.Errorf("EGL display lacks %s", eglDMABufImportExt)
	}
	if e.BindAPI(eglOpenGLAPI) == 0 {
		return e.errorf("eglBindAPI")
	}

	configAttribs := []int32{
		eglSurfaceType, ws.surfaceBit(),
		eglRenderableType, eglOpenGLBit,
		eglRedSize, 8,
		eglGreenSize, 8,
		eglBlueSize, 8,
		eglAlphaSize, 8,
		eglNone,
	}
	var numConfigs int32
	if e.ChooseConfig(d.display, &configAttribs[0], &d.config, 1, &numConfigs) == 0 || numConfigs == 0 {
		return e.errorf("eglChooseConfig")
	}

	d.surface = ws.createSurface(e, d.display, d.config, d.cfg.Width, d.cfg.Height)
	if d.surface == 0 {
		return e.errorf("create surface")
	}

	contextAttribs := []int32{
		eglContextMajor, 3,
		eglContextMinor, 3,
		eglContextProfile, eglCoreProfileBit,
		eglNone,
	}
	d.context = e.CreateContext(d.display, d.config, 0, &contextAttribs[0])
	if d.context == 0 {
		return e.errorf("eglCreateContext")
	}
	if e.MakeCurrent(d.display, d.surface, d.surface, d.context) == 0 {
		return e.errorf("eglMakeCurrent")
	}
	// frame pacing is ours; don't let the swap block on vblank as well
	e.SwapInterval(d.display, 0)

	if err := e.loadImageExtension(); err != nil {
		return err
	}
	g, err := loadGL(e)
	if err != nil {
		return err
	}
	d.gl = g

	d.initQuad()
	g.Viewport(0, 0, int32(d.cfg.Width), int32(d.cfg.Height))
	if err := g.checkError("init"); err != nil {
		return err
	}

	d.log.Info().
		Int32("egl_major", major).
		Int32("egl_minor", minor).
		Int("width", d.cfg.Width).
		Int("height", d.cfg.Height).
		Msg("graphics context ready")
	return nil
}

func (d *glDevice) initQuad() {
	g := d.gl
	g.GenVertexArrays(1, &d.vao)
	g.BindVertexArray(d.vao)

	g.GenBuffers(1, &d.vbo)
	g.BindBuffer(glArrayBuffer, d.vbo)
	g.BufferData(glArrayBuffer, len(quadVertices)*4, unsafe.Pointer(&quadVertices[0]), glStaticDraw)

	g.GenBuffers(1, &d.ebo)
	g.BindBuffer(glElementArrayBuf, d.ebo)
	g.BufferData(glElementArrayBuf, len(quadIndices)*4, unsafe.Pointer(&quadIndices[0]), glStaticDraw)

	const stride = 4 * 4
	g.VertexAttribPointer(attribPosition, 2, glFloat, glFalse, stride, 0)
	g.EnableVertexAttribArray(attribPosition)
	g.VertexAttribPointer(attribTexCoord, 2, glFloat, glFalse, stride, 2*4)
	g.EnableVertexAttribArray(attribTexCoord)

	g.BindVertexArray(0)
	runtime.KeepAlive(quadVertices)
	runtime.KeepAlive(quadIndices)
}

func (d *glDevice) RefreshRate() float64 {
	return d.cfg.RefreshRate
}

func (d *glDevice) ShaderLoaded() bool {
	return d.program != 0
}

func (d *glDevice) LoadShader(path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read shader %s: %w", path, err)
	}

	program, err := d.buildProgram(vertexShaderSource, string(source))
	if err != nil {
		return fmt.Errorf("shader %s: %w", path, err)
	}

	if d.program != 0 {
		d.gl.DeleteProgram(d.program)
	}
	d.program = program
	d.shaderPath = path
	d.locations = make(map[string]int32)

	d.log.Info().Str("path", path).Msg("loaded warp shader")
	return nil
}

func (d *glDevice) buildProgram(vertexSrc, fragmentSrc string) (uint32, error) {
	g := d.gl
	vs, err := d.compile(glVertexShader, vertexSrc)
	if err != nil {
		return 0, fmt.Errorf("vertex shader: %w", err)
	}
	defer g.DeleteShader(vs)

	fs, err := d.compile(glFragmentShader, fragmentSrc)
	if err != nil {
		return 0, fmt.Errorf("fragment shader: %w", err)
	}
	defer g.DeleteShader(fs)

	program := g.CreateProgram()
	g.AttachShader(program, vs)
	g.AttachShader(program, fs)
	g.LinkProgram(program)

	var status int32
	g.GetProgramiv(program, glLinkStatus, &status)
	if status == 0 {
		var length int32
		g.GetProgramiv(program, glInfoLogLength, &length)
		msg := infoLog(length, func(size int32, buf *byte) { g.GetProgramInfoLog(program, size, nil, buf) })
		g.DeleteProgram(program)
		return 0, fmt.Errorf("link failed: %s", msg)
	}
	return program, nil
}

func (d *glDevice) compile(kind uint32, source string) (uint32, error) {
	g := d.gl
	shader := g.CreateShader(kind)

	src := append([]byte(source), 0)
	ptr := &src[0]
	g.ShaderSource(shader, 1, &ptr, nil)
	g.CompileShader(shader)
	runtime.KeepAlive(src)

	var status int32
	g.GetShaderiv(shader, glCompileStatus, &status)
	if status == 0 {
		var length int32
		g.GetShaderiv(shader, glInfoLogLength, &length)
		msg := infoLog(length, func(size int32, buf *byte) { g.GetShaderInfoLog(shader, size, nil, buf) })
		g.DeleteShader(shader)
		return 0, fmt.Errorf("compile failed: %s", msg)
	}
	return shader, nil
}

func infoLog(length int32, read func(size int32, buf *byte)) string {
	if length <= 1 {
		return "no info log"
	}
	buf := make([]byte, length)
	read(length, &buf[0])
	return strings.TrimRight(string(buf), "\x00\n")
}

// importAttribs builds the eglCreateImageKHR attribute list for a
// single-plane dma-buf.
func importAttribs(buf *dmabuf.Buffer) []int32 {
	attribs := []int32{
		eglWidth, int32(buf.Width),
		eglHeight, int32(buf.Height),
		eglLinuxDRMFourCC, int32(buf.Format),
		eglPlane0FD, int32(buf.FD.Int()),
		eglPlane0Offset, 0,
		eglPlane0Pitch, int32(buf.Stride),
	}
	if buf.HasExplicitModifier() {
		attribs = append(attribs,
			eglPlane0ModLo, int32(uint32(buf.Modifier)),
			eglPlane0ModHi, int32(uint32(buf.Modifier>>32)),
		)
	}
	return append(attribs, eglNone)
}

func (d *glDevice) ImportBuffer(buf *dmabuf.Buffer) (Image, error) {
	if !buf.FD.Owned() {
		return Image{}, fmt.Errorf("import %s: descriptor not owned", buf)
	}
	attribs := importAttribs(buf)
	handle := d.egl.CreateImageKHR(d.display, 0, eglLinuxDMABuf, 0, &attribs[0])
	if handle == 0 {
		return Image{}, d.egl.errorf("eglCreateImageKHR(" + buf.String() + ")")
	}

	g := d.gl
	var tex uint32
	g.GenTextures(1, &tex)
	g.BindTexture(glTexture2D, tex)
	g.EGLImageTargetTexture2D(glTexture2D, handle)
	g.TexParameteri(glTexture2D, glTextureMinFilter, glLinear)
	g.TexParameteri(glTexture2D, glTextureMagFilter, glLinear)
	g.TexParameteri(glTexture2D, glTextureWrapS, glClampToEdge)
	g.TexParameteri(glTexture2D, glTextureWrapT, glClampToEdge)

	if err := g.checkError("bind imported image"); err != nil {
		g.DeleteTextures(1, &tex)
		d.egl.DestroyImageKHR(d.display, handle)
		return Image{}, err
	}

	return Image{
		Texture:       tex,
		handle:        handle,
		FramebufferID: buf.FramebufferID,
		Width:         buf.Width,
		Height:        buf.Height,
	}, nil
}

func (d *glDevice) ReleaseImage(img Image) {
	if img.Texture != 0 {
		d.gl.DeleteTextures(1, &img.Texture)
	}
	if img.handle != 0 {
		d.egl.DestroyImageKHR(d.display, img.handle)
	}
}

func (d *glDevice) location(name string) int32 {
	if loc, ok := d.locations[name]; ok {
		return loc
	}
	loc := d.gl.GetUniformLocation(d.program, name)
	d.locations[name] = loc
	return loc
}

func (d *glDevice) setUniform(u Uniform) {
	loc := d.location(u.Name)
	if loc < 0 {
		// the shader doesn't use it, or the compiler optimized it away
		return
	}
	g, v := d.gl, u.Value
	switch u.Kind {
	case UniformInt:
		g.Uniform1i(loc, int32(v[0]))
	case UniformFloat:
		g.Uniform1f(loc, v[0])
	case UniformVec2:
		g.Uniform2f(loc, v[0], v[1])
	case UniformVec3:
		g.Uniform3f(loc, v[0], v[1], v[2])
	case UniformVec4:
		g.Uniform4f(loc, v[0], v[1], v[2], v[3])
	case UniformMat4:
		g.UniformMatrix4fv(loc, 1, glFalse, &v[0])
	}
}

func (d *glDevice) Draw(img Image, uniforms UniformSet) error {
	if d.program == 0 {
		return ErrShaderNotLoaded
	}
	g := d.gl

	g.ClearColor(0, 0, 0, 1)
	g.Clear(glColorBufferBit)
	g.UseProgram(d.program)

	g.ActiveTexture(glTexture0)
	g.BindTexture(glTexture2D, img.Texture)
	if loc := d.location(screenTextureUniform); loc >= 0 {
		g.Uniform1i(loc, 0)
	}
	for _, u := range uniforms {
		d.setUniform(u)
	}

	g.BindVertexArray(d.vao)
	g.DrawElements(glTriangles, int32(len(quadIndices)), glUnsignedInt, 0)
	g.BindVertexArray(0)

	return g.checkError("draw")
}

func (d *glDevice) Present() error {
	if d.ws.kind() == BackendHeadless {
		// pbuffer swaps are no-ops; wait for the GPU so pacing is realistic
		d.gl.Finish()
		return nil
	}
	if d.egl.SwapBuffers(d.display, d.surface) == 0 {
		return d.egl.errorf("eglSwapBuffers")
	}
	return nil
}

// Close tears down in reverse order of init. It tolerates a partially
// initialized device.
func (d *glDevice) Close() error {
	if d.gl != nil {
		if d.program != 0 {
			d.gl.DeleteProgram(d.program)
			d.program = 0
		}
		if d.ebo != 0 {
			d.gl.DeleteBuffers(1, &d.ebo)
		}
		if d.vbo != 0 {
			d.gl.DeleteBuffers(1, &d.vbo)
		}
		if d.vao != 0 {
			d.gl.DeleteVertexArrays(1, &d.vao)
		}
		d.gl = nil
	}
	if d.egl != nil && d.display != 0 {
		d.egl.MakeCurrent(d.display, 0, 0, 0)
		if d.context != 0 {
			d.egl.DestroyContext(d.display, d.context)
			d.context = 0
		}
		if d.surface != 0 {
			d.egl.DestroySurface(d.display, d.surface)
			d.surface = 0
		}
		d.egl.Terminate(d.display)
		d.display = 0
	}
	if d.ws != nil {
		d.ws.destroy()
		d.ws = nil
	}
	return nil
}
