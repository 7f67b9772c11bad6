package lookup

import "errors"

var (
	ErrInvalidInput = errors.New("no address provided")
	ErrNotFound     = errors.New("no coordinates found")
	ErrEmptyResult  = errors.New("no network coverage found")
	ErrStore        = errors.New("coverage store failure")

	// ErrGeocoderUnavailable is a NotFound caused by the provider failing
	// rather than by the address.
	ErrGeocoderUnavailable error = &unavailableError{}
)

type unavailableError struct{}

func (*unavailableError) Error() string        { return "geocoder unavailable" }
func (*unavailableError) Is(target error) bool { return target == ErrNotFound }

// Outcome is the low-cardinality label for a Lookup result.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrGeocoderUnavailable):
		return "geocoder_unavailable"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrEmptyResult):
		return "empty_result"
	case errors.Is(err, ErrStore):
		return "store_error"
	default:
		return "error"
	}
}
