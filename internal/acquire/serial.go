package acquire

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jacobsa/go-serial/serial"
)

// SerialSource reads voltages from a microcontroller bridge that prints
// one decimal volt reading per line, e.g. an Arduino doing analogRead
// on the sensor pin.
type SerialSource struct {
	port   io.ReadWriteCloser
	reader *bufio.Reader
}

// NewSerialSource opens the bridge port, 8N1.
func NewSerialSource(portName string, baudRate uint) (*SerialSource, error) {
	options := serial.OpenOptions{
		PortName:        portName,
		BaudRate:        baudRate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	}

	port, err := serial.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return &SerialSource{port: port, reader: bufio.NewReader(port)}, nil
}

// ReadVoltage consumes lines until one parses as a voltage. Blank lines
// are skipped; anything else on the wire is a protocol error.
func (s *SerialSource) ReadVoltage() (float64, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return 0, fmt.Errorf("serial read: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return 0, fmt.Errorf("serial: bad voltage line %q: %w", line, err)
		}
		return v, nil
	}
}

// Close releases the port.
func (s *SerialSource) Close() error {
	return s.port.Close()
}
