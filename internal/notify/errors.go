package notify

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a channel failure.
type ErrorKind string

const (
	KindTransport        ErrorKind = "transport_failure"
	KindAuth             ErrorKind = "auth_failure"
	KindProviderRejected ErrorKind = "provider_rejected"
	// KindUnexpected marks a recovered panic inside a channel client.
	KindUnexpected ErrorKind = "unexpected"
)

// ErrChannelDisabled is returned by a channel invoked without usable
// configuration. The dispatcher treats it as "skipped", not as a failure.
var ErrChannelDisabled = errors.New("channel disabled: configuration missing")

// ChannelError is the failure of a single delivery attempt.
type ChannelError struct {
	Channel string
	Kind    ErrorKind
	Err     error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Channel, e.Kind, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// Detail is the provider-level message without channel/kind decoration.
func (e *ChannelError) Detail() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func newChannelError(channel string, kind ErrorKind, err error) *ChannelError {
	return &ChannelError{Channel: channel, Kind: kind, Err: err}
}

// redactedError hides a secret (bot token, API key) that net/http embeds in
// url.Error messages, while keeping the cause reachable through Unwrap.
type redactedError struct {
	msg string
	err error
}

func (r *redactedError) Error() string { return r.msg }
func (r *redactedError) Unwrap() error { return r.err }

func redact(err error, secrets ...string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, s := range secrets {
		if s != "" {
			msg = strings.ReplaceAll(msg, s, "***")
		}
	}
	return &redactedError{msg: msg, err: err}
}
