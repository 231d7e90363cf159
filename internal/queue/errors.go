package queue

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"

	"github.com/rocketmq-go/consumer-engine/internal/wire"
)

// Sentinel errors for the engine's expected, non-exceptional conditions.
var (
	ErrQueueDropped = errors.New("queue: partition dropped")
	ErrFifoSlotBusy = errors.New("queue: fifo slot busy")
)

// statusError turns a non-OK wire.Status into an error, preserving the
// status code for callers that branch on it via errors.As/status mapping.
func statusError(s wire.Status) error {
	return &statusErr{status: s}
}

type statusErr struct {
	status wire.Status
}

func (e *statusErr) Error() string {
	return fmt.Sprintf("rpc status %s: %s", e.status.Code, e.status.Message)
}

// Code extracts the wire status code, defaulting to codes.Internal for any
// error this package didn't produce (spec §6's status mapping table: OK,
// RESOURCE_EXHAUSTED and DEADLINE_EXCEEDED pass through unchanged, anything
// else collapses to INTERNAL).
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	var se *statusErr
	if errors.As(err, &se) {
		switch se.status.Code {
		case codes.OK, codes.ResourceExhausted, codes.DeadlineExceeded:
			return se.status.Code
		default:
			return codes.Internal
		}
	}
	return codes.Internal
}
