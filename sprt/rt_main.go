package main

import (
	"flag"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/sprender"
	"github.com/gekko3d/sprender/sprt/rt/app"
	"github.com/gekko3d/sprender/sprt/rt/assets"
	"github.com/gekko3d/sprender/sprt/rt/core"
	"github.com/gekko3d/sprender/sprt/rt/pool"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "TOML config file")
	debug := flag.Bool("debug", false, "Enable debug checks and the stats overlay")
	texture := flag.String("texture", "", "Albedo texture for the demo crates")
	flag.Parse()

	cfg := sprender.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = sprender.LoadConfig(*configPath); err != nil {
			panic(err)
		}
	}
	if *debug {
		cfg.Debug = true
	}
	log := sprender.NewDefaultLogger("sprender", cfg.Debug)

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	application := app.NewApp(window, cfg, log)
	if err := application.Init(); err != nil {
		panic(err)
	}
	defer application.Release()

	spin, err := buildScene(application.Engine, *texture)
	if err != nil {
		panic(err)
	}
	var angle float32
	application.OnUpdate = func(e *app.Engine, dt float32) {
		angle += 45 * dt
		_ = e.Scene.SetRotation(spin, mgl32.Vec3{0, angle, 0})
	}

	application.Run()
}

// buildScene lays out a floor, a ring of crates around a spinning parent and
// a sphere, lit by a shadow casting sun and one point light. It returns the
// spinning node.
func buildScene(e *app.Engine, texture string) (pool.Handle, error) {
	floorMesh, err := e.CreateMesh(assets.Plane(40, 8))
	if err != nil {
		return pool.Invalid, err
	}
	cubeMesh, err := e.CreateMesh(assets.Cube(1))
	if err != nil {
		return pool.Invalid, err
	}
	floorMat, err := e.CreateMaterial(assets.MaterialDesc{Label: "floor", BaseColor: [4]float32{0.6, 0.6, 0.65, 1}})
	if err != nil {
		return pool.Invalid, err
	}
	crateMat, err := e.CreateMaterial(assets.MaterialDesc{
		Label:        "crate",
		TexturePaths: [3]string{texture},
		BaseColor:    [4]float32{0.9, 0.5, 0.2, 1},
	})
	if err != nil {
		return pool.Invalid, err
	}

	if _, err := e.Spawn(floorMesh, floorMat, core.NewTransform(), pool.Invalid); err != nil {
		return pool.Invalid, err
	}

	spin, err := e.CreateSceneNode(app.NodeDesc{Transform: core.TransformAt(0, 0.5, 0)})
	if err != nil {
		return pool.Invalid, err
	}
	for i := 0; i < 8; i++ {
		t := core.TransformAt(0, 0, -4)
		ring, err := e.CreateSceneNode(app.NodeDesc{Transform: core.Transform{
			Rotation: mgl32.Vec3{0, float32(i) * 45, 0},
			Scale:    mgl32.Vec3{1, 1, 1},
		}, Parent: spin})
		if err != nil {
			return pool.Invalid, err
		}
		if _, err := e.Spawn(cubeMesh, crateMat, t, ring); err != nil {
			return pool.Invalid, err
		}
	}

	sphere := &assets.StaticSource{Label: "sphere", Parts: []assets.MeshPrimitive{{
		Mesh:     assets.UVSphere(1, 24, 32),
		Material: assets.MaterialDesc{Label: "sphere", BaseColor: [4]float32{0.3, 0.6, 0.9, 1}},
	}}}
	if _, err := e.LoadModel(sphere, core.TransformAt(0, 1.5, 0), pool.Invalid); err != nil {
		return pool.Invalid, err
	}

	if _, err := e.CreateLight(app.LightDesc{
		Position:     mgl32.Vec3{10, 20, 10},
		Direction:    mgl32.Vec3{-0.5, -1, -0.5},
		Color:        mgl32.Vec3{1, 0.95, 0.9},
		Intensity:    1,
		CastShadow:   true,
		ShadowExtent: 25,
	}); err != nil {
		return pool.Invalid, err
	}
	lamp, err := e.CreateLight(app.LightDesc{Color: mgl32.Vec3{0.4, 0.6, 1}, Range: 12, Intensity: 3})
	if err != nil {
		return pool.Invalid, err
	}
	if _, err := e.CreateSceneNode(app.NodeDesc{
		Transform: core.TransformAt(0, 3, -4),
		Parent:    spin,
		Link:      core.LightLink(lamp),
	}); err != nil {
		return pool.Invalid, err
	}
	return spin, nil
}
