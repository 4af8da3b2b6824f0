package app

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gekko3d/sprender"
	"github.com/gekko3d/sprender/sprt/rt/gpu"
	"github.com/gekko3d/sprender/sprt/rt/overlay"
)

// App owns the window, the wgpu objects behind the gpu backend and the
// Engine, and drives one frame per loop iteration.
type App struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Surface  *gpu.WGPUSurface
	Device   *gpu.WGPUDevice

	Engine *Engine
	Input  *sprender.Input
	Clock  *sprender.Clock
	Fly    *FlyCamera
	Text   *overlay.TextOverlay

	// ShowStats draws the profiler in the overlay; F1 toggles it.
	ShowStats bool
	// OnUpdate runs once per frame before rendering.
	OnUpdate func(e *Engine, dt float32)

	cfg   sprender.Config
	log   sprender.Logger
	depth gpu.Texture

	frameCount int
	fps        float64
	fpsTime    float64
}

func NewApp(window *glfw.Window, cfg sprender.Config, log sprender.Logger) *App {
	return &App{
		Window:    window,
		Input:     &sprender.Input{},
		Clock:     sprender.NewClock(),
		ShowStats: cfg.Debug,
		cfg:       cfg,
		log:       sprender.OrNop(log),
	}
}

func (a *App) Init() error {
	a.Instance = wgpu.CreateInstance(nil)
	surface := a.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(a.Window))

	adapter, err := a.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("request adapter: %w", err)
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("request device: %w", err)
	}

	width, height := a.Window.GetFramebufferSize()
	caps := surface.GetCapabilities(adapter)
	config := &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	a.Surface = gpu.NewWGPUSurface(surface, adapter, device, config)

	if a.Device, err = gpu.NewWGPUDevice(adapter, device, config.Format, a.log); err != nil {
		return err
	}
	if a.Engine, err = NewEngine(a.cfg, a.Device, a.log); err != nil {
		return err
	}
	a.Fly = NewFlyCamera(a.Engine.Camera)

	fontData, err := overlay.FontData(a.cfg.FontPath)
	if err == nil {
		a.Text, err = overlay.NewTextOverlay(fontData, 18, a.log)
	}
	if err != nil {
		a.log.Warnf("text overlay disabled: %v", err)
	} else {
		a.Engine.Overlay = a.Text
	}

	return a.resizeDepth(uint32(width), uint32(height))
}

func (a *App) resizeDepth(w, h uint32) error {
	if w == 0 || h == 0 {
		return nil
	}
	if a.depth != nil {
		a.depth.Release()
	}
	var err error
	a.depth, err = a.Device.CreateTexture(gpu.TextureDesc{
		Label:  "Depth",
		Width:  w,
		Height: h,
		Format: gpu.FormatDepth32,
		Usage:  gpu.TextureRenderTarget,
	})
	if err != nil {
		a.depth = nil
		return fmt.Errorf("depth texture: %w", err)
	}
	return nil
}

func (a *App) Resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	a.Surface.Resize(uint32(w), uint32(h))
	if err := a.resizeDepth(uint32(w), uint32(h)); err != nil {
		a.log.Errorf("resize: %v", err)
	}
}

// Update polls input and moves the camera. It reports false when the window
// should close.
func (a *App) Update() bool {
	a.Clock.Tick()
	a.Input.Poll(a.Window)

	if a.Input.Pressed(sprender.KeyTab) {
		a.Input.MouseCaptured = !a.Input.MouseCaptured
	}
	if a.Input.Pressed(sprender.KeyF1) {
		a.ShowStats = !a.ShowStats
	}
	if a.Input.Pressed(sprender.KeyEscape) {
		a.Window.SetShouldClose(true)
	}
	a.Fly.Update(a.Input, a.Clock.Seconds())
	if a.OnUpdate != nil {
		a.OnUpdate(a.Engine, a.Clock.Seconds())
	}

	a.fpsTime += a.Clock.Dt.Seconds()
	a.frameCount++
	if a.fpsTime >= 1.0 {
		a.fps = float64(a.frameCount) / a.fpsTime
		a.frameCount, a.fpsTime = 0, 0
	}

	if a.Text != nil {
		a.Text.Clear()
		if a.ShowStats {
			white := [4]float32{1, 1, 1, 1}
			a.Text.Print(fmt.Sprintf("%.1f fps", a.fps), 10, 10, 1, [4]float32{1, 1, 0, 1})
			a.Text.Print(a.Engine.Profiler.String(), 10, 34, 0.8, white)
		}
	}
	return !a.Window.ShouldClose()
}

func (a *App) Render() {
	if a.depth == nil {
		return
	}
	target, err := a.Surface.Acquire()
	if err != nil {
		a.log.Errorf("%v", err)
		return
	}
	w, h := a.Surface.Size()
	aspect := float32(w) / float32(max(h, 1))
	if err := a.Engine.Frame(target, a.depth, aspect); err != nil {
		a.log.Errorf("frame: %v", err)
	}
	a.Surface.Present()
}

func (a *App) Run() {
	a.Window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		a.Resize(width, height)
	})
	for a.Update() {
		a.Render()
	}
}

func (a *App) Release() {
	if a.Text != nil {
		a.Text.Release()
	}
	if a.Engine != nil {
		a.Engine.Release()
	}
	if a.depth != nil {
		a.depth.Release()
	}
	if a.Device != nil {
		a.Device.Release()
	}
	if a.Instance != nil {
		a.Instance.Release()
	}
}
