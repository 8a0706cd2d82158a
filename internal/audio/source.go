package audio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/sai-assistant/sai/pkg/logger"
)

// ErrDeviceUnavailable is reported when the selected input device
// disappears mid-stream or cannot be opened. The pipeline pauses capture
// and waits for reselection; it never crashes on device loss.
var ErrDeviceUnavailable = errors.New("audio input device unavailable")

// DeviceInfo describes an available input device.
type DeviceInfo struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	SampleRate float64 `json:"default_sample_rate"`
}

// Source produces a restartable stream of fixed-size PCM frames from an
// input device. Frame delivery is lossy by design: when the consumer
// falls behind, frames are dropped rather than buffered indefinitely.
type Source interface {
	// Start opens the device and begins delivering frames until ctx is
	// cancelled, Stop is called, or the device fails.
	Start(ctx context.Context) error
	// Frames returns the frame delivery channel. The channel is never
	// closed; consumers select against their own cancellation.
	Frames() <-chan Frame
	// Errors delivers device failures (ErrDeviceUnavailable wrapped).
	Errors() <-chan error
	// SelectDevice switches to the named device; takes effect on the
	// next Start.
	SelectDevice(name string)
	// Stop terminates capture and releases the device.
	Stop()
}

// PortAudioSource is the portaudio-backed Source implementation.
type PortAudioSource struct {
	sampleRate int
	frameMs    int
	frames     chan Frame
	errs       chan error
	logger     *logger.Logger
	mu         sync.Mutex
	deviceName string
	cancel     context.CancelFunc
	stream     *portaudio.Stream
	running    bool
	dropped    int64
}

// NewPortAudioSource creates a capture source. deviceName selects the
// input device by case-insensitive substring; empty selects the default
// input device.
func NewPortAudioSource(sampleRate, frameMs, queueFrames int, deviceName string, log *logger.Logger) (*PortAudioSource, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}

	return &PortAudioSource{
		sampleRate: sampleRate,
		frameMs:    frameMs,
		frames:     make(chan Frame, queueFrames),
		errs:       make(chan error, 1),
		deviceName: deviceName,
		logger:     log.Named("audio-source"),
	}, nil
}

// ListDevices enumerates input-capable devices. Used at startup and
// whenever the pipeline needs to offer reselection after device loss.
func ListDevices() ([]DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	var out []DeviceInfo
	for i, dev := range devices {
		if dev.MaxInputChannels < 1 {
			continue
		}
		out = append(out, DeviceInfo{
			ID:         i,
			Name:       dev.Name,
			SampleRate: dev.DefaultSampleRate,
		})
	}
	return out, nil
}

// Frames implements Source.
func (s *PortAudioSource) Frames() <-chan Frame { return s.frames }

// Errors implements Source.
func (s *PortAudioSource) Errors() <-chan error { return s.errs }

// SelectDevice implements Source.
func (s *PortAudioSource) SelectDevice(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceName = name
}

// Start implements Source.
func (s *PortAudioSource) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}

	dev, err := s.findDevice()
	if err != nil {
		s.mu.Unlock()
		return err
	}

	frameSamples := FrameSamples(s.sampleRate, s.frameMs)
	buf := make([]int16, frameSamples)

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(s.sampleRate),
		FramesPerBuffer: frameSamples,
	}

	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		s.mu.Unlock()
		return errors.Join(ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		s.mu.Unlock()
		return errors.Join(ErrDeviceUnavailable, err)
	}

	srcCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.stream = stream
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Audio capture started",
		logger.String("device", dev.Name),
		logger.Int("sample_rate", s.sampleRate),
		logger.Int("frame_ms", s.frameMs))

	go s.captureLoop(srcCtx, stream, buf)
	return nil
}

// captureLoop reads device buffers until cancelled or the device fails.
// Reads pass through a Framer because portaudio hosts do not all honor
// the requested buffer size exactly.
func (s *PortAudioSource) captureLoop(ctx context.Context, stream *portaudio.Stream, buf []int16) {
	framer := NewFramer(s.sampleRate, s.frameMs)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := stream.Read(); err != nil {
			select {
			case <-ctx.Done():
				// Stop() closes the stream under us; not a device failure.
				return
			default:
			}
			s.logger.Warn("Audio device read failed", logger.Error(err))
			s.stopStream()
			select {
			case s.errs <- errors.Join(ErrDeviceUnavailable, err):
			default:
			}
			return
		}

		for _, frame := range framer.Push(buf, time.Now().UTC()) {
			// Missed frames are lost, never buffered indefinitely: the
			// capture loop must not stall behind a slow consumer.
			select {
			case s.frames <- frame:
			default:
				s.mu.Lock()
				s.dropped++
				n := s.dropped
				s.mu.Unlock()
				if n%100 == 1 {
					s.logger.Warn("Frame queue full, dropping frames", logger.Int64("dropped_total", n))
				}
			}
		}
	}
}

// Stop implements Source.
func (s *PortAudioSource) Stop() {
	s.stopStream()
}

func (s *PortAudioSource) stopStream() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	if s.cancel != nil {
		s.cancel()
	}
	if s.stream != nil {
		_ = s.stream.Stop()
		_ = s.stream.Close()
		s.stream = nil
	}
}

// Terminate releases the portaudio runtime. Call once at shutdown.
func (s *PortAudioSource) Terminate() {
	s.Stop()
	_ = portaudio.Terminate()
}

// findDevice resolves the configured device name to a portaudio device.
// Must be called with s.mu held.
func (s *PortAudioSource) findDevice() (*portaudio.DeviceInfo, error) {
	if s.deviceName == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, errors.Join(ErrDeviceUnavailable, err)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, errors.Join(ErrDeviceUnavailable, err)
	}

	want := strings.ToLower(s.deviceName)
	for _, dev := range devices {
		if dev.MaxInputChannels < 1 {
			continue
		}
		if strings.Contains(strings.ToLower(dev.Name), want) {
			return dev, nil
		}
	}
	return nil, ErrDeviceUnavailable
}
