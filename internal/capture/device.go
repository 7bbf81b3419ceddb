package capture

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/zentourist/kino-live-audio-ng/internal/audio"
)

// DeviceSource captures audio from a system input device via miniaudio
type DeviceSource struct {
	logger *slog.Logger
}

// NewDeviceSource creates a device-backed audio source
func NewDeviceSource(logger *slog.Logger) *DeviceSource {
	return &DeviceSource{logger: logger}
}

// Open initializes the backend context and starts a capture device
// delivering float32 mono blocks to onBlock.
func (d *DeviceSource) Open(cfg Config, onBlock BlockFunc) (Stream, error) {
	allocCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: init context: %v", ErrDeviceUnavailable, err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)

	if cfg.Device != "" {
		id, name, err := findCaptureDevice(allocCtx, cfg.Device)
		if err != nil {
			_ = allocCtx.Uninit()
			allocCtx.Free()
			return nil, err
		}
		deviceConfig.Capture.DeviceID = id.Pointer()
		d.logger.Info("Capture device selected",
			slog.String("requested", cfg.Device),
			slog.String("device", name))
	}

	stream := &deviceStream{ctx: allocCtx}

	// inputSamples is backend-owned memory; decode copies it before the
	// callback returns.
	onData := func(outputSamples, inputSamples []byte, frameCount uint32) {
		samples, err := audio.DecodeF32LE(inputSamples)
		if err != nil {
			return
		}
		onBlock(samples)
	}

	device, err := malgo.InitDevice(allocCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onData,
	})
	if err != nil {
		_ = allocCtx.Uninit()
		allocCtx.Free()
		return nil, fmt.Errorf("%w: init device: %v", mapInitError(err), err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = allocCtx.Uninit()
		allocCtx.Free()
		return nil, fmt.Errorf("%w: start device: %v", ErrDeviceUnavailable, err)
	}

	stream.device = device
	return stream, nil
}

// findCaptureDevice resolves a configured device name to a backend ID
func findCaptureDevice(ctx *malgo.AllocatedContext, name string) (*malgo.DeviceID, string, error) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, "", fmt.Errorf("%w: enumerate devices: %v", ErrDeviceUnavailable, err)
	}

	for i := range infos {
		if strings.Contains(strings.ToLower(infos[i].Name()), strings.ToLower(name)) {
			id := infos[i].ID
			return &id, infos[i].Name(), nil
		}
	}

	return nil, "", fmt.Errorf("%w: no capture device matching %q", ErrDeviceUnavailable, name)
}

// mapInitError classifies a backend init failure as a capability error
func mapInitError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "access denied") || strings.Contains(msg, "permission") {
		return ErrPermissionDenied
	}
	return ErrDeviceUnavailable
}

// deviceStream wraps an open capture device
type deviceStream struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	closeOnce sync.Once
	closeErr  error
}

// Close stops the device synchronously; the backend guarantees no data
// callback is in flight once Stop returns.
func (s *deviceStream) Close() error {
	s.closeOnce.Do(func() {
		if s.device != nil {
			if err := s.device.Stop(); err != nil {
				s.closeErr = fmt.Errorf("stop capture device: %w", err)
			}
			s.device.Uninit()
		}
		if s.ctx != nil {
			if err := s.ctx.Uninit(); err != nil && s.closeErr == nil {
				s.closeErr = fmt.Errorf("uninit capture context: %w", err)
			}
			s.ctx.Free()
		}
	})
	return s.closeErr
}
