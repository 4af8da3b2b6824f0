package gpu

import (
	"errors"
	"fmt"

	"github.com/gekko3d/sprender"
)

var ErrOffsetRange = errors.New("uniform slot out of range")

// maxUniformBinding is the WebGPU default maxUniformBufferBindingSize.
const maxUniformBinding = 64 << 10

type StreamerConfig struct {
	// Alignment overrides the device alignment when larger.
	Alignment uint32
	Models    uint32
	Lights    uint32
	MaxIdle   int
}

type StreamerStats struct {
	Bytes   uint64
	Copies  int
	Staging StagingStats
}

// UniformStreamer uploads per-frame uniforms through pooled staging buffers.
// Each frame it writes the camera block, one model block per render mesh at
// (id-1)*stride and one light block per light at the same stride, then
// records staging-to-device copies before any pass reads them.
type UniformStreamer struct {
	device Device
	log    sprender.Logger

	align    uint64
	stride   uint64
	modelCap uint32
	lightCap uint32

	modelsOff uint64
	lightsOff uint64

	staging *StagingPool

	Camera Buffer
	Models Buffer
	Lights Buffer

	cur        *Staging
	wroteCam   bool
	modelsHigh uint32
	lightsHigh uint32
	stats      StreamerStats
}

func NewUniformStreamer(device Device, cfg StreamerConfig, log sprender.Logger) (*UniformStreamer, error) {
	align := uint64(device.Limits().MinUniformBufferOffsetAlignment)
	if uint64(cfg.Alignment) > align {
		align = uint64(cfg.Alignment)
	}
	if align == 0 || align&(align-1) != 0 {
		return nil, fmt.Errorf("uniform alignment %d is not a power of two", align)
	}
	if cfg.Models == 0 || cfg.Lights == 0 {
		return nil, errors.New("streamer needs at least one model and one light slot")
	}

	s := &UniformStreamer{
		device:   device,
		log:      sprender.OrNop(log),
		align:    align,
		stride:   Stride(LightStrideMin, align),
		modelCap: cfg.Models,
		lightCap: cfg.Lights,
	}
	if uint64(s.lightCap)*s.stride > maxUniformBinding {
		return nil, fmt.Errorf("%d lights at stride %d exceed the uniform binding limit", s.lightCap, s.stride)
	}

	s.modelsOff = Stride(CameraSize, align)
	s.lightsOff = s.modelsOff + uint64(s.modelCap)*s.stride
	total := s.lightsOff + uint64(s.lightCap)*s.stride

	var err error
	if s.Camera, err = device.CreateBuffer(BufferDesc{Label: "camera", Size: CameraSize, Usage: BufferUniform | BufferCopyDst}); err != nil {
		return nil, fmt.Errorf("camera buffer: %w", err)
	}
	if s.Models, err = device.CreateBuffer(BufferDesc{Label: "models", Size: uint64(s.modelCap) * s.stride, Usage: BufferUniform | BufferCopyDst}); err != nil {
		return nil, fmt.Errorf("model buffer: %w", err)
	}
	if s.Lights, err = device.CreateBuffer(BufferDesc{Label: "lights", Size: uint64(s.lightCap) * s.stride, Usage: BufferUniform | BufferCopyDst}); err != nil {
		return nil, fmt.Errorf("light buffer: %w", err)
	}

	s.staging = NewStagingPool(device, total, cfg.MaxIdle, log)
	s.log.Debugf("streamer: align=%d stride=%d staging=%d bytes", align, s.stride, total)
	return s, nil
}

// Alignment is the device dynamic offset alignment in effect.
func (s *UniformStreamer) Alignment() uint64 { return s.align }

// Stride is the distance between consecutive model or light blocks.
func (s *UniformStreamer) Stride() uint64 { return s.stride }

func (s *UniformStreamer) ModelOffset(id uint32) (uint32, error) {
	return s.offset(id, s.modelCap)
}

func (s *UniformStreamer) LightOffset(id uint32) (uint32, error) {
	return s.offset(id, s.lightCap)
}

func (s *UniformStreamer) offset(id, capacity uint32) (uint32, error) {
	if id == 0 || id > capacity {
		return 0, fmt.Errorf("%w: id %d, capacity %d", ErrOffsetRange, id, capacity)
	}
	return uint32(uint64(id-1) * s.stride), nil
}

// Begin acquires a mapped staging buffer for this frame.
func (s *UniformStreamer) Begin() error {
	if s.cur != nil {
		return errors.New("streamer: Begin called twice without Retire")
	}
	st, err := s.staging.Acquire()
	if err != nil {
		return err
	}
	s.cur = st
	s.wroteCam = false
	s.modelsHigh = 0
	s.lightsHigh = 0
	s.stats.Bytes = 0
	s.stats.Copies = 0
	return nil
}

func (s *UniformStreamer) mapped() ([]byte, error) {
	if s.cur == nil || s.cur.Bytes() == nil {
		return nil, errors.New("streamer: no mapped staging buffer, call Begin")
	}
	return s.cur.Bytes(), nil
}

func (s *UniformStreamer) WriteCamera(c *CameraUniform) error {
	dst, err := s.mapped()
	if err != nil {
		return err
	}
	c.Put(dst[:CameraSize])
	s.wroteCam = true
	return nil
}

func (s *UniformStreamer) WriteModel(id uint32, m *ModelUniform) error {
	dst, err := s.mapped()
	if err != nil {
		return err
	}
	off, err := s.ModelOffset(id)
	if err != nil {
		return err
	}
	base := s.modelsOff + uint64(off)
	m.Put(dst[base : base+ModelSize])
	s.modelsHigh = max(s.modelsHigh, id)
	return nil
}

func (s *UniformStreamer) WriteLight(id uint32, l *LightUniform) error {
	dst, err := s.mapped()
	if err != nil {
		return err
	}
	off, err := s.LightOffset(id)
	if err != nil {
		return err
	}
	base := s.lightsOff + uint64(off)
	l.Put(dst[base : base+LightSize])
	s.lightsHigh = max(s.lightsHigh, id)
	return nil
}

// Flush unmaps the staging buffer and records the copies for everything
// written since Begin. It must be recorded before the frame's passes.
func (s *UniformStreamer) Flush(enc CommandEncoder) {
	if s.cur == nil {
		return
	}
	s.cur.Unmap()
	src := s.cur.Buffer()

	if s.wroteCam {
		s.copy(enc, src, 0, s.Camera, CameraSize)
	}
	if s.modelsHigh > 0 {
		s.copy(enc, src, s.modelsOff, s.Models, uint64(s.modelsHigh)*s.stride)
	}
	if s.lightsHigh > 0 {
		s.copy(enc, src, s.lightsOff, s.Lights, uint64(s.lightsHigh)*s.stride)
	}
}

func (s *UniformStreamer) copy(enc CommandEncoder, src Buffer, srcOff uint64, dst Buffer, size uint64) {
	enc.CopyBufferToBuffer(src, srcOff, dst, 0, size)
	s.stats.Bytes += size
	s.stats.Copies++
}

// Retire returns the frame's staging buffer to the pool. Call after Submit.
func (s *UniformStreamer) Retire() {
	if s.cur == nil {
		return
	}
	s.staging.Retire(s.cur)
	s.cur = nil
}

func (s *UniformStreamer) Stats() StreamerStats {
	st := s.stats
	st.Staging = s.staging.Stats()
	return st
}

func (s *UniformStreamer) Release() {
	s.Retire()
	s.staging.Release()
	for _, b := range []Buffer{s.Camera, s.Models, s.Lights} {
		if b != nil {
			b.Release()
		}
	}
}
