package fieldtrip

import "github.com/tphakala/ftbuffer/internal/errors"

func init() {
	errors.RegisterComponent("pkg/fieldtrip", "codec")
}

// Codec sentinel errors. Callers match them with errors.Is.
var (
	ErrInvalidDataType = errors.NewStd("invalid data type")
	ErrInvalidRange    = errors.NewStd("invalid sample range")
	ErrInvalidHeader   = errors.NewStd("invalid header")
	ErrInvalidEvent    = errors.NewStd("invalid event")
	ErrInvalidData     = errors.NewStd("invalid data block")
	ErrLabelCount      = errors.NewStd("label count does not match channel count")
)
