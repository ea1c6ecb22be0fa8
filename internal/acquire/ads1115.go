package acquire

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"
)

var (
	hostOnce sync.Once
	hostErr  error
)

// initHost loads the periph drivers once per process.
func initHost() error {
	hostOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			hostErr = fmt.Errorf("failed to initialize periph: %w", err)
		}
	})
	return hostErr
}

// ADS1115Source reads the IR sensor through an ADS1115 ADC on I2C.
type ADS1115Source struct {
	bus i2c.BusCloser
	pin ads1x15.AnalogPin
}

// NewADS1115Source opens the ADC on the given I2C bus (empty selects
// the first available) and prepares a single-ended channel (0-3) for
// the sensor. The 4.096 V full-scale range covers the GP2Y0A41SK0F's
// 0-3.1 V output with headroom.
func NewADS1115Source(busName string, channel int) (*ADS1115Source, error) {
	channels := []ads1x15.Channel{ads1x15.Channel0, ads1x15.Channel1, ads1x15.Channel2, ads1x15.Channel3}
	if channel < 0 || channel >= len(channels) {
		return nil, fmt.Errorf("ADC channel must be 0-3, got %d", channel)
	}
	if err := initHost(); err != nil {
		return nil, err
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %q: %w", busName, err)
	}

	adc, err := ads1x15.NewADS1115(bus, &ads1x15.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to initialize ADS1115: %w", err)
	}

	pin, err := adc.PinForChannel(channels[channel], 4096*physic.MilliVolt, 128*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to prepare ADS1115 channel %d: %w", channel, err)
	}

	return &ADS1115Source{bus: bus, pin: pin}, nil
}

// ReadVoltage runs one single-shot conversion.
func (s *ADS1115Source) ReadVoltage() (float64, error) {
	sample, err := s.pin.Read()
	if err != nil {
		return 0, fmt.Errorf("ads1115 read: %w", err)
	}
	return float64(sample.V) / float64(physic.Volt), nil
}

// Close halts the conversion pin and releases the bus.
func (s *ADS1115Source) Close() error {
	err := s.pin.Halt()
	if cerr := s.bus.Close(); err == nil {
		err = cerr
	}
	return err
}
