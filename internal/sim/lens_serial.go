package sim

import (
	"fmt"

	"go.bug.st/serial"
)

// SerialLens writes hardware lens settings to a VCM driver board over a
// serial port, so a simulated run can drive a real lens on the bench.
type SerialLens struct {
	port serial.Port
}

// OpenSerialLens opens the driver board on the named port.
func OpenSerialLens(portName string) (*SerialLens, error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open lens port %q: %w", portName, err)
	}

	return &SerialLens{port: port}, nil
}

// Apply sends one hardware lens setting.
func (l *SerialLens) Apply(setting int) error {
	_, err := l.port.Write([]byte(fmt.Sprintf("L%d\n", setting)))
	if err != nil {
		return fmt.Errorf("failed to write lens setting: %w", err)
	}
	return nil
}

// Close closes the port.
func (l *SerialLens) Close() error {
	return l.port.Close()
}
