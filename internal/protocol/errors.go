package protocol

import "errors"

var (
	ErrUnknownType = errors.New("unknown message type")
	ErrBadEnvelope = errors.New("bad envelope")
	ErrBadPayload  = errors.New("bad payload")
)

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrRateLimit       = "E_RATE_LIMIT"

	// Session layer.
	ErrBadRequest = "E_BAD_REQUEST"
	ErrConflict   = "E_CONFLICT"
	ErrTooLarge   = "E_TOO_LARGE"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrRateLimit:       {},
	ErrBadRequest:      {},
	ErrConflict:        {},
	ErrTooLarge:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// CodeOf maps a decode error to the code used in drop counters and logs.
func CodeOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBadPayload):
		return ErrBadRequest
	default:
		return ErrProtoBadRequest
	}
}
