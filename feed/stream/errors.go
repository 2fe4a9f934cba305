package stream

import "errors"

var (
	// ErrConnectCalledMultipleTimes is returned when Connect has been called multiple times on a single client
	ErrConnectCalledMultipleTimes = errors.New("tried to call Connect multiple times")
	// ErrNoCredentials is returned when no API key has been configured;
	// connecting without one can never succeed so it is not retried
	ErrNoCredentials = errors.New("no api key configured")
	// ErrAuthRejected is returned when the server explicitly rejects the
	// credential frame. The connection is torn down and redialed from
	// scratch; authentication is never retried on the same connection.
	ErrAuthRejected = errors.New("authentication rejected by server")
	// ErrSubscriptionChangeAfterTerminated is returned when a subscription change is
	// attempted after the client has terminated
	ErrSubscriptionChangeAfterTerminated = errors.New("subscription change after client termination")
)
