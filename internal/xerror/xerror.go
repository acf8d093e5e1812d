// Package xerror collects the sentinel errors shared by the codec, topic
// tree, session store, QoS engine, router and connection handler.
package xerror

import (
	"errors"
	"fmt"
)

// Err wraps a sentinel Message with the Context it occurred in, so log
// lines stay terse while errors.Is still works against the sentinels below.
type Err struct {
	Context string
	Message error
}

func (e *Err) Error() string {
	return fmt.Sprintf("context: %s, message: %v", e.Context, e.Message)
}

func (e *Err) Unwrap() error {
	return e.Message
}

var (
	// Framing / remaining-length
	ErrEmptyBuffer            = errors.New("buffer is empty")
	ErrShortBuffer            = errors.New("buffer is too short for string length")
	ErrNeedMore               = errors.New("need more bytes to decode a full packet")
	ErrRemainingLengthExceeds = errors.New("remaining length exceeds 268435455")
	ErrMalformed              = errors.New("packet is malformed")
	ErrInvalidPacketType      = errors.New("packet type is invalid")
	ErrInvalidPacketLength    = errors.New("packet length does not match remaining length")
	ErrPacketTooLarge         = errors.New("packet exceeds configured max packet size")

	// Strings / topics
	ErrInvalidUTF8String  = errors.New("string is not valid UTF-8")
	ErrNullCharInString   = errors.New("string contains a NUL character")
	ErrEmptyTopic         = errors.New("topic name is empty")
	ErrEmptyTopicFilter   = errors.New("topic filter is empty")
	ErrWildcardInTopic    = errors.New("topic name must not contain wildcards")
	ErrInvalidWildcardUse = errors.New("topic filter uses + or # incorrectly")
	ErrTopicTooLong       = errors.New("topic exceeds max_topic_length")
	ErrTooManyTopicLevels = errors.New("topic exceeds max_topic_levels")

	// CONNECT
	ErrUnsupportedProtocolName  = errors.New("protocol name is not MQTT")
	ErrUnsupportedProtocolLevel = errors.New("protocol level is not 4 (MQTT 3.1.1)")
	ErrIdentifierRejected       = errors.New("client identifier rejected")
	ErrInvalidWillQoS           = errors.New("will QoS level is invalid")
	ErrPasswordWithoutUsername  = errors.New("password flag set without username flag")
	ErrReservedBitSet           = errors.New("reserved connect flag bit is set")

	// PUBLISH / QoS
	ErrInvalidQoSLevel     = errors.New("QoS level is invalid")
	ErrInvalidDUPFlag      = errors.New("DUP flag must be 0 for QoS 0 publish")
	ErrMissingPacketID     = errors.New("packet identifier required but absent")
	ErrInvalidPacketID     = errors.New("packet identifier must be non-zero")
	ErrPayloadTooLarge     = errors.New("payload exceeds max_payload_size")
	ErrDuplicatePacketID   = errors.New("packet identifier already inflight")
	ErrPacketIDSpaceFull   = errors.New("no free packet identifiers in this direction")
	ErrTooManyRetries      = errors.New("qos_max_retries exceeded")
	ErrQoS2AlreadyReleased = errors.New("packet id already released")

	// Auth / authorization
	ErrUserNotFound     = errors.New("user not found")
	ErrInvalidPassword  = errors.New("invalid password")
	ErrNotAuthorized    = errors.New("client is not authorized for this operation")
	ErrAnonymousDenied  = errors.New("anonymous connections are not permitted")
	ErrHashFailed       = errors.New("password hash generation failed")
	ErrTooManyClients   = errors.New("max_clients reached")
	ErrTooManySubs      = errors.New("max_subscriptions_per_client reached")
	ErrClientIDTooLong  = errors.New("client identifier too long")
	ErrClientIDRequired = errors.New("client identifier required when clean_session is false")

	// Config
	ErrOutOfRange = errors.New("configuration value out of range")
)
