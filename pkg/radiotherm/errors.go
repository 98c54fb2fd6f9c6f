package radiotherm

import (
	"context"
	"errors"
	"net"
)

// TstatError is returned when the thermostat answers with an invalid value,
// which it does while busy servicing another request.
type TstatError struct {
	Message string
}

func (e *TstatError) Error() string {
	return e.Message
}

// ErrorKind classifies device errors for the coordinator.
type ErrorKind int

const (
	KindUnclassified ErrorKind = iota
	KindDeviceBusy
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindDeviceBusy:
		return "device_busy"
	case KindTimeout:
		return "timeout"
	default:
		return "unclassified"
	}
}

// Classify maps an error returned by a DeviceAPI call onto an ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnclassified
	}

	var tstatErr *TstatError
	if errors.As(err, &tstatErr) {
		return KindDeviceBusy
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	return KindUnclassified
}

// Detail returns the device message for busy errors and the full error text otherwise.
func Detail(err error) string {
	var tstatErr *TstatError
	if errors.As(err, &tstatErr) {
		return tstatErr.Message
	}
	return err.Error()
}
