package sprender

import (
	"github.com/go-gl/glfw/v3.3/glfw"
)

type Key int

const (
	KeyA Key = iota
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
	KeyG
	KeyH
	KeyI
	KeyJ
	KeyK
	KeyL
	KeyM
	KeyN
	KeyO
	KeyP
	KeyQ
	KeyR
	KeyS
	KeyT
	KeyU
	KeyV
	KeyW
	KeyX
	KeyY
	KeyZ
	KeySpace
	KeyEnter
	KeyEscape
	KeyTab
	KeyShift
	KeyControl
	KeyF1
	KeyF2
	KeyF3
	MouseButtonLeft
	MouseButtonRight
	MouseButtonMiddle

	keyCount
)

// InputState is what the renderer consumes from the input collaborator.
type InputState interface {
	Down(k Key) bool
	Pressed(k Key) bool
	Released(k Key) bool
	MouseDelta() (dx, dy float64)
	Captured() bool
}

type Input struct {
	down     [keyCount]bool
	pressed  [keyCount]bool
	released [keyCount]bool

	MouseX, MouseY           float64
	MouseDeltaX, MouseDeltaY float64
	MouseCaptured            bool
}

func (in *Input) Down(k Key) bool     { return valid(k) && in.down[k] }
func (in *Input) Pressed(k Key) bool  { return valid(k) && in.pressed[k] }
func (in *Input) Released(k Key) bool { return valid(k) && in.released[k] }
func (in *Input) Captured() bool      { return in.MouseCaptured }

func (in *Input) MouseDelta() (float64, float64) {
	return in.MouseDeltaX, in.MouseDeltaY
}

func valid(k Key) bool { return k >= 0 && k < keyCount }

// apply records this frame's physical state of k and derives the edges.
func (in *Input) apply(k Key, isDown bool) {
	in.pressed[k] = isDown && !in.down[k]
	in.released[k] = !isDown && in.down[k]
	in.down[k] = isDown
}

func (in *Input) moveMouse(x, y float64) {
	if in.MouseCaptured {
		in.MouseDeltaX = x - in.MouseX
		in.MouseDeltaY = y - in.MouseY
	} else {
		in.MouseDeltaX = 0
		in.MouseDeltaY = 0
	}
	in.MouseX = x
	in.MouseY = y
}

// Poll pumps glfw events and samples win. Call once per frame from the
// thread that owns the window.
func (in *Input) Poll(win *glfw.Window) {
	glfw.PollEvents()

	for k, gk := range keyToGlfw {
		in.apply(k, win.GetKey(gk) == glfw.Press)
	}
	for k, b := range buttonToGlfw {
		in.apply(k, win.GetMouseButton(b) == glfw.Press)
	}

	in.moveMouse(win.GetCursorPos())

	if in.MouseCaptured {
		win.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
	} else {
		win.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
	}
}

var keyToGlfw = map[Key]glfw.Key{
	KeyA:       glfw.KeyA,
	KeyB:       glfw.KeyB,
	KeyC:       glfw.KeyC,
	KeyD:       glfw.KeyD,
	KeyE:       glfw.KeyE,
	KeyF:       glfw.KeyF,
	KeyG:       glfw.KeyG,
	KeyH:       glfw.KeyH,
	KeyI:       glfw.KeyI,
	KeyJ:       glfw.KeyJ,
	KeyK:       glfw.KeyK,
	KeyL:       glfw.KeyL,
	KeyM:       glfw.KeyM,
	KeyN:       glfw.KeyN,
	KeyO:       glfw.KeyO,
	KeyP:       glfw.KeyP,
	KeyQ:       glfw.KeyQ,
	KeyR:       glfw.KeyR,
	KeyS:       glfw.KeyS,
	KeyT:       glfw.KeyT,
	KeyU:       glfw.KeyU,
	KeyV:       glfw.KeyV,
	KeyW:       glfw.KeyW,
	KeyX:       glfw.KeyX,
	KeyY:       glfw.KeyY,
	KeyZ:       glfw.KeyZ,
	KeySpace:   glfw.KeySpace,
	KeyEnter:   glfw.KeyEnter,
	KeyEscape:  glfw.KeyEscape,
	KeyTab:     glfw.KeyTab,
	KeyShift:   glfw.KeyLeftShift,
	KeyControl: glfw.KeyLeftControl,
	KeyF1:      glfw.KeyF1,
	KeyF2:      glfw.KeyF2,
	KeyF3:      glfw.KeyF3,
}

var buttonToGlfw = map[Key]glfw.MouseButton{
	MouseButtonLeft:   glfw.MouseButtonLeft,
	MouseButtonRight:  glfw.MouseButtonRight,
	MouseButtonMiddle: glfw.MouseButtonMiddle,
}
