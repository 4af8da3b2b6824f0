package gpu

import (
	"fmt"

	"github.com/gekko3d/sprender"
)

type stagingState uint8

const (
	stagingMapped  stagingState = iota // CPU may write
	stagingInUse                       // handed out for the current frame
	stagingMapping                     // MapAsync requested, waiting for Poll
)

// Staging is one mapped upload buffer handed out by a StagingPool.
type Staging struct {
	id    int
	buf   StagingBuffer
	state stagingState
	data  []byte
}

// Bytes is the mapped range. It is nil once Unmap has been called.
func (s *Staging) Bytes() []byte { return s.data }

func (s *Staging) Buffer() Buffer { return s.buf }

func (s *Staging) ID() int { return s.id }

// Unmap makes the buffer usable as a copy source for this frame's commands.
func (s *Staging) Unmap() {
	if s.data == nil {
		return
	}
	s.buf.Unmap()
	s.data = nil
}

type StagingStats struct {
	Alive   int
	Idle    int
	Pending int
	InUse   int
}

// StagingPool keeps MapWrite|CopySrc buffers alive across frames. A buffer
// handed back after submission is re-mapped asynchronously and becomes
// available again once the map callback fires from Device.Poll. When nothing
// is mapped yet a new buffer is created instead of waiting.
type StagingPool struct {
	device  Device
	size    uint64
	maxIdle int
	log     sprender.Logger

	free    []*Staging
	pending int
	inUse   int
	alive   int
	nextID  int
	closed  bool
}

func NewStagingPool(device Device, size uint64, maxIdle int, log sprender.Logger) *StagingPool {
	if maxIdle < 1 {
		maxIdle = 1
	}
	return &StagingPool{
		device:  device,
		size:    size,
		maxIdle: maxIdle,
		log:     sprender.OrNop(log),
	}
}

func (p *StagingPool) Size() uint64 { return p.size }

// Acquire returns the most recently re-mapped buffer, or a fresh mapped one.
func (p *StagingPool) Acquire() (*Staging, error) {
	if p.closed {
		return nil, fmt.Errorf("staging pool released")
	}
	if n := len(p.free); n > 0 {
		s := p.free[n-1]
		p.free = p.free[:n-1]
		s.state = stagingInUse
		p.inUse++
		return s, nil
	}

	p.nextID++
	buf, err := p.device.CreateStagingBuffer(fmt.Sprintf("staging-%d", p.nextID), p.size)
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	p.alive++
	p.inUse++
	if p.pending > 0 {
		p.log.Debugf("staging: %d buffers still mapping, allocated staging-%d", p.pending, p.nextID)
	}
	return &Staging{id: p.nextID, buf: buf, state: stagingInUse, data: buf.MappedRange()}, nil
}

// Retire hands s back after the commands that read it were submitted.
func (p *StagingPool) Retire(s *Staging) {
	if s == nil || s.state != stagingInUse {
		return
	}
	s.Unmap()
	p.inUse--
	s.state = stagingMapping
	p.pending++

	err := s.buf.MapAsync(func(ok bool) {
		p.pending--
		if !ok || p.closed || len(p.free) >= p.maxIdle {
			if !ok {
				p.log.Warnf("staging-%d: map failed, dropping buffer", s.id)
			}
			s.buf.Release()
			p.alive--
			return
		}
		s.state = stagingMapped
		s.data = s.buf.MappedRange()
		p.free = append(p.free, s)
	})
	if err != nil {
		p.pending--
		p.log.Warnf("staging-%d: map request failed: %v", s.id, err)
		s.buf.Release()
		p.alive--
	}
}

func (p *StagingPool) Stats() StagingStats {
	return StagingStats{Alive: p.alive, Idle: len(p.free), Pending: p.pending, InUse: p.inUse}
}

// Release frees idle buffers now; buffers still mapping are freed when their
// callback fires.
func (p *StagingPool) Release() {
	p.closed = true
	for _, s := range p.free {
		s.buf.Release()
		p.alive--
	}
	p.free = nil
}
