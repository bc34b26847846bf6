package sensors

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/lowaak/treadmill-hud/treadmill-hud-app/internal/go_func_utils"
)

// Heart Rate service and characteristic (Bluetooth SIG assigned numbers)
var (
	heartRateServiceUUID = bluetooth.ServiceUUIDHeartRate
	heartRateCharUUID    = bluetooth.CharacteristicUUIDHeartRateMeasurement
)

const (
	scanRestartDelay = 3 * time.Second
)

// HeartRateSource scans for a BLE heart rate strap, subscribes to its
// measurement notifications and feeds each sample to the sink. On disconnect
// it goes back to scanning, so a strap that drops mid-workout picks up again
// without user action.
type HeartRateSource struct {
	adapter *bluetooth.Adapter
	logger  *log.Logger
	sink    func(bpm int)

	// Optional address filter; empty means first strap found wins.
	addressFilter string
}

// NewHeartRateSource creates a HeartRateSource delivering samples to sink.
func NewHeartRateSource(adapter *bluetooth.Adapter, sink func(bpm int), logger *log.Logger) *HeartRateSource {
	if adapter == nil {
		panic("HeartRateSource: adapter cannot be nil")
	}
	if sink == nil {
		panic("HeartRateSource: sink cannot be nil")
	}
	if logger == nil {
		panic("HeartRateSource: logger cannot be nil")
	}
	return &HeartRateSource{
		adapter: adapter,
		logger:  logger,
		sink:    sink,
	}
}

// SetAddressFilter restricts connection attempts to one device address.
func (h *HeartRateSource) SetAddressFilter(address string) {
	h.addressFilter = address
}

// Run drives the scan/connect/subscribe loop until the context is cancelled.
// Runs in its own goroutine; errors are logged and retried, not returned.
func (h *HeartRateSource) Run(ctx context.Context) {
	go_func_utils.SafeGo(h.logger, func() {
		for ctx.Err() == nil {
			if err := h.connectOnce(ctx); err != nil && ctx.Err() == nil {
				h.logger.Printf("HeartRateSource: %v, retrying in %s", err, scanRestartDelay)
				select {
				case <-ctx.Done():
					return
				case <-time.After(scanRestartDelay):
				}
			}
		}
	})
}

// connectOnce performs one full scan -> connect -> subscribe cycle and blocks
// until the device drops or the context is cancelled.
func (h *HeartRateSource) connectOnce(ctx context.Context) error {
	result, err := h.scanForStrap(ctx)
	if err != nil {
		return err
	}

	name := result.LocalName()
	if name == "" {
		name = "Unknown"
	}
	h.logger.Printf("HeartRateSource: connecting to %s (%s)", name, result.Address.String())

	// Watch for the drop so we can go back to scanning.
	disconnected := make(chan struct{})
	var dropOnce sync.Once
	targetAddr := result.Address.String()
	h.adapter.SetConnectHandler(func(d bluetooth.Device, connected bool) {
		if !connected && d.Address.String() == targetAddr {
			dropOnce.Do(func() { close(disconnected) })
		}
	})

	device, err := h.adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", targetAddr, err)
	}
	defer device.Disconnect()

	char, err := h.findMeasurementChar(device)
	if err != nil {
		return err
	}

	err = char.EnableNotifications(func(buf []byte) {
		bpm, err := ParseHeartRateMeasurement(buf)
		if err != nil {
			h.logger.Printf("HeartRateSource: parse error: %v (raw: %v)", err, buf)
			return
		}
		h.sink(bpm)
	})
	if err != nil {
		return fmt.Errorf("enabling heart rate notifications: %w", err)
	}
	h.logger.Printf("HeartRateSource: subscribed to %s", name)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-disconnected:
		return fmt.Errorf("heart rate strap disconnected")
	}
}

// scanForStrap blocks until a device advertising the heart rate service (and
// matching the address filter, if set) is seen.
func (h *HeartRateSource) scanForStrap(ctx context.Context) (*bluetooth.ScanResult, error) {
	h.logger.Printf("HeartRateSource: scanning for heart rate strap...")

	var found *bluetooth.ScanResult
	scanDone := make(chan struct{})

	go_func_utils.SafeGo(h.logger, func() {
		select {
		case <-ctx.Done():
		case <-scanDone:
		}
		h.adapter.StopScan()
	})

	err := h.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if !hasHeartRateService(result) {
			return
		}
		if h.addressFilter != "" && result.Address.String() != h.addressFilter {
			return
		}
		r := result
		found = &r
		close(scanDone)
	})
	if err != nil {
		return nil, fmt.Errorf("scanning: %w", err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if found == nil {
		return nil, fmt.Errorf("scan ended without finding a heart rate strap")
	}
	return found, nil
}

func hasHeartRateService(result bluetooth.ScanResult) bool {
	for _, uuid := range result.ServiceUUIDs() {
		if uuid == heartRateServiceUUID {
			return true
		}
	}
	return false
}

// findMeasurementChar walks service discovery down to the heart rate
// measurement characteristic.
func (h *HeartRateSource) findMeasurementChar(device bluetooth.Device) (*bluetooth.DeviceCharacteristic, error) {
	services, err := device.DiscoverServices([]bluetooth.UUID{heartRateServiceUUID})
	if err != nil {
		return nil, fmt.Errorf("discovering heart rate service: %w", err)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("device does not expose the heart rate service")
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{heartRateCharUUID})
	if err != nil {
		return nil, fmt.Errorf("discovering heart rate characteristic: %w", err)
	}
	if len(chars) == 0 {
		return nil, fmt.Errorf("heart rate service has no measurement characteristic")
	}
	return &chars[0], nil
}

// ParseHeartRateMeasurement decodes a Heart Rate Measurement characteristic
// value. Bit 0 of the flags selects UINT8 vs UINT16 encoding.
// See: https://www.bluetooth.com/specifications/specs/heart-rate-service-1-0/
func ParseHeartRateMeasurement(buf []byte) (int, error) {
	if len(buf) < 2 {
		return 0, fmt.Errorf("heart rate data too short: %d bytes", len(buf))
	}

	flags := buf[0]
	if flags&0x01 != 0 {
		if len(buf) < 3 {
			return 0, fmt.Errorf("heart rate UINT16 data too short: %d bytes", len(buf))
		}
		return int(uint16(buf[1]) | uint16(buf[2])<<8), nil
	}
	return int(buf[1]), nil
}
