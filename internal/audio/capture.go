// Package audio provides device discovery, capture, and resampling for
// the speech pipeline.
package audio

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/speechdesk/speechdesk/internal/audioring"
)

// Capture-callback ring configuration: a small lock-free handoff between
// the realtime audio callback and the consumer goroutine that drains into
// the long-lived audioring.Buffer the decoder snapshots from.
const (
	callbackRingSize   = 128
	maxSamplesPerChunk = 2048
)

type audioChunk struct {
	samples []float32
	len     int
}

// callbackRing is a lock-free single-producer single-consumer ring used
// only to get samples out of the realtime audio callback without
// blocking it. It is not the long-lived buffer the decoder reads from.
type callbackRing struct {
	chunks    [callbackRingSize]audioChunk
	head      atomic.Uint64
	tail      atomic.Uint64
	dropCount atomic.Uint64
}

func newCallbackRing() *callbackRing {
	r := &callbackRing{}
	for i := range r.chunks {
		r.chunks[i].samples = make([]float32, maxSamplesPerChunk)
	}
	return r
}

func (r *callbackRing) push(samples []float32) bool {
	head := r.head.Load()
	tail := r.tail.Load()
	if head-tail >= callbackRingSize {
		count := r.dropCount.Add(1)
		if count%100 == 0 {
			log.Printf("audio callback ring full, dropped %d chunks", count)
		}
		return false
	}
	slot := &r.chunks[head%callbackRingSize]
	n := copy(slot.samples, samples)
	slot.len = n
	r.head.Add(1)
	return true
}

func (r *callbackRing) pop() []float32 {
	head := r.head.Load()
	tail := r.tail.Load()
	if head == tail {
		return nil
	}
	slot := &r.chunks[tail%callbackRingSize]
	samples := slot.samples[:slot.len]
	r.tail.Add(1)
	return samples
}

// Capturer reads raw, native-rate mono float32 samples from the selected
// input device into a shared audioring.Buffer. It deliberately does not
// resample: per-tick resampling to the speech model's rate is the
// decoder's responsibility (see internal/decoder), since only the
// decoder knows which window needs which target rate and when.
type Capturer struct {
	ctx              *malgo.AllocatedContext
	device           *malgo.Device
	deviceID         malgo.DeviceID
	deviceName       string
	deviceSampleRate uint32
	buffer           *audioring.Buffer
	running          atomic.Bool
	ring             *callbackRing
	stopChan         chan struct{}
	wg               sync.WaitGroup
}

// NewCapturer initializes the audio backend and selects an input device
// following the priority chain in PickDevice. It does not start capture.
func NewCapturer(buffer *audioring.Buffer, overrideName, configuredName string) (*Capturer, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}
	if len(infos) == 0 {
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("no capture devices reported by audio backend")
	}

	devices := make([]Device, len(infos))
	defaultIndex := -1
	for i, info := range infos {
		devices[i] = Device{Index: i, Name: info.Name()}
		if info.IsDefault != 0 {
			defaultIndex = i
		}
	}

	chosen, ok := PickDevice(devices, overrideName, configuredName, defaultIndex)
	if !ok {
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("no capture-capable input device found")
	}

	return &Capturer{
		ctx:        ctx,
		deviceID:   infos[chosen.Index].ID,
		deviceName: chosen.Name,
		buffer:     buffer,
		ring:       newCallbackRing(),
		stopChan:   make(chan struct{}),
	}, nil
}

// DeviceName returns the selected input device's reported name.
func (c *Capturer) DeviceName() string { return c.deviceName }

// DeviceSampleRate returns the device's negotiated native sample rate,
// valid only after Start.
func (c *Capturer) DeviceSampleRate() int { return int(c.deviceSampleRate) }

// Start begins audio capture from the selected device at its native
// sample rate. Samples are buffered in a callback ring and drained by a
// dedicated goroutine into buffer, never resampled here.
func (c *Capturer) Start() error {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.Capture.DeviceID = c.deviceID.Pointer()
	deviceConfig.PeriodSizeInFrames = 1024

	onRecvFrames := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		if !c.running.Load() {
			return
		}
		pooledSamples := bytesToFloat32(pInputSamples)
		if len(pooledSamples) > 0 {
			c.ring.push(pooledSamples)
		}
		returnFloat32Buffer(pooledSamples)
	}

	device, err := malgo.InitDevice(c.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device %q: %w", c.deviceName, err)
	}
	c.deviceSampleRate = device.SampleRate()
	c.device = device
	c.running.Store(true)

	c.wg.Add(1)
	go c.processLoop()

	if err := device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device %q: %w", c.deviceName, err)
	}
	return nil
}

// processLoop drains the callback ring into the shared audioring.Buffer.
// Runs in a dedicated goroutine, separate from the audio callback.
func (c *Capturer) processLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopChan:
			return
		default:
			samples := c.ring.pop()
			if samples != nil && c.running.Load() {
				c.buffer.Append(samples)
			} else {
				select {
				case <-c.stopChan:
					return
				case <-time.After(100 * time.Microsecond):
				}
			}
		}
	}
}

// Stop halts audio capture.
func (c *Capturer) Stop() {
	c.running.Store(false)

	select {
	case <-c.stopChan:
	default:
		close(c.stopChan)
	}
	c.wg.Wait()

	if c.device != nil {
		c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}
}

// Pause temporarily halts audio capture without tearing down the device.
func (c *Capturer) Pause() { c.running.Store(false) }

// Resume restarts audio capture after Pause.
func (c *Capturer) Resume() { c.running.Store(true) }

// Close releases all audio resources.
func (c *Capturer) Close() {
	c.Stop()
	if c.ctx != nil {
		_ = c.ctx.Uninit()
		c.ctx.Free()
		c.ctx = nil
	}
}

// float32Pool reduces allocations in the audio callback hot path.
var float32Pool = sync.Pool{
	New: func() interface{} {
		buf := make([]float32, 2048)
		return &buf
	},
}

// bytesToFloat32 converts raw bytes to float32 samples. The returned
// slice is only valid until the next call; callers that keep it must copy.
func bytesToFloat32(data []byte) []float32 {
	numSamples := len(data) / 4
	pBuf := float32Pool.Get().(*[]float32)
	if cap(*pBuf) < numSamples {
		*pBuf = make([]float32, numSamples)
	}
	samples := (*pBuf)[:numSamples]
	for i := range samples {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}

// returnFloat32Buffer returns a buffer obtained from bytesToFloat32 to the pool.
func returnFloat32Buffer(samples []float32) {
	if samples == nil {
		return
	}
	buf := samples[:cap(samples)]
	float32Pool.Put(&buf)
}
