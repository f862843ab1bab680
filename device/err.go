package device

import (
	"errors"

	"github.com/ezrec/rel/translate"
)

var f = translate.From

var (
	// Bus errors
	ErrBusSealed     = errors.New(f("bus sealed"))
	ErrBusFull       = errors.New(f("bus full"))
	ErrDeviceInvalid = errors.New(f("device invalid"))
)
