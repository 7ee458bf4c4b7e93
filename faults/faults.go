// Package faults defines the error taxonomy shared by the chain, contract and
// governance packages. Every failure that crosses a component boundary is
// classified into exactly one Class so callers can decide between failover,
// capability degradation and surfacing the error to the user.
package faults

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// Class identifies a failure category.
type Class string

const (
	// Transport covers unreachable endpoints, timeouts, 5xx responses and
	// malformed JSON-RPC. Retryable with failover.
	Transport Class = "transport"
	// WrongChain means an endpoint answered with an unexpected chain id.
	// The endpoint is marked down and not retried this session.
	WrongChain Class = "wrong_chain"
	// NotDeployed means no code exists at the contract address. Terminal
	// for the session.
	NotDeployed Class = "not_deployed"
	// MethodUnavailable means the call decoded as "function not found" or
	// an ABI mismatch. Disables the specific capability.
	MethodUnavailable Class = "method_unavailable"
	// Revert means the contract rejected the call. The reason, when
	// decodable, is surfaced verbatim.
	Revert Class = "revert"
	// UserRejected means the wallet declined the signature. Never retried.
	UserRejected Class = "user_rejected"
	// InsufficientFunds means the sender cannot cover value plus gas.
	InsufficientFunds Class = "insufficient_funds"
	// GasError covers estimation and intrinsic gas failures.
	GasError Class = "gas_error"
	// NonceError covers nonce-too-low and replacement-underpriced failures.
	NonceError Class = "nonce_error"
	// AuthzDenied means the authorization oracle said no.
	AuthzDenied Class = "authz_denied"
	// Invariant means an internal contract of the coordinator was violated,
	// e.g. the action counter decreased. Logged; state left unchanged.
	Invariant Class = "invariant"
)

// Fault is a classified error. It wraps the underlying cause, if any.
type Fault struct {
	Class  Class
	Reason string
	cause  error
}

func (f *Fault) Error() string {
	switch {
	case f.Reason != "" && f.cause != nil:
		return fmt.Sprintf("%s: %s: %v", f.Class, f.Reason, f.cause)
	case f.Reason != "":
		return fmt.Sprintf("%s: %s", f.Class, f.Reason)
	case f.cause != nil:
		return fmt.Sprintf("%s: %v", f.Class, f.cause)
	default:
		return string(f.Class)
	}
}

func (f *Fault) Unwrap() error { return f.cause }

// New returns a Fault of the given class with a human-readable reason.
func New(class Class, reason string) *Fault {
	return &Fault{Class: class, Reason: reason}
}

// Newf returns a Fault of the given class with a formatted reason.
func Newf(class Class, format string, args ...any) *Fault {
	return &Fault{Class: class, Reason: fmt.Sprintf(format, args...)}
}

// Wrap returns a Fault of the given class wrapping err.
func Wrap(class Class, err error) *Fault {
	return &Fault{Class: class, cause: err}
}

// WrapReason returns a Fault of the given class wrapping err with a reason.
func WrapReason(class Class, reason string, err error) *Fault {
	return &Fault{Class: class, Reason: reason, cause: err}
}

// ClassOf returns the class of err if it is, or wraps, a Fault.
func ClassOf(err error) (Class, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f.Class, true
	}

	return "", false
}

// Is reports whether err carries the given class.
func Is(err error, class Class) bool {
	c, ok := ClassOf(err)

	return ok && c == class
}

// Retryable reports whether err may be retried on another endpoint. Only
// transport-class failures qualify; everything else is either endpoint-fatal
// or must be surfaced.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if c, ok := ClassOf(err); ok {
		return c == Transport
	}

	return classifyRaw(err) == Transport
}

// Classify maps an arbitrary error, typically from go-ethereum, into a Fault.
// Already classified errors pass through unchanged.
func Classify(err error) *Fault {
	if err == nil {
		return nil
	}
	var f *Fault
	if errors.As(err, &f) {
		return f
	}

	class := classifyRaw(err)
	if class == Revert {
		if reason := RevertReason(err); reason != "" {
			return WrapReason(Revert, reason, err)
		}
	}

	return Wrap(class, err)
}

func classifyRaw(err error) Class {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Transport
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "execution reverted"),
		strings.Contains(msg, "always failing transaction"):
		return Revert
	case strings.Contains(msg, "method not found"),
		strings.Contains(msg, "function selector was not recognized"),
		strings.Contains(msg, "does not exist/is not available"),
		strings.Contains(msg, "abi: "):
		return MethodUnavailable
	case strings.Contains(msg, "user rejected"),
		strings.Contains(msg, "user denied"):
		return UserRejected
	case strings.Contains(msg, "insufficient funds"):
		return InsufficientFunds
	case strings.Contains(msg, "nonce too low"),
		strings.Contains(msg, "nonce too high"),
		strings.Contains(msg, "replacement transaction underpriced"):
		return NonceError
	case strings.Contains(msg, "intrinsic gas too low"),
		strings.Contains(msg, "gas required exceeds"),
		strings.Contains(msg, "out of gas"),
		strings.Contains(msg, "max fee per gas"):
		return GasError
	default:
		// Unreachable hosts, timeouts, 5xx, malformed payloads and stale
		// state ("missing trie node") all route through failover.
		return Transport
	}
}

// RevertReason extracts a revert reason from a JSON-RPC error, preferring the
// structured error data over the message text.
func RevertReason(err error) string {
	var derr rpc.DataError
	if errors.As(err, &derr) {
		if data, ok := derr.ErrorData().(string); ok && data != "" {
			return data
		}
	}

	msg := err.Error()
	for _, prefix := range []string{"execution reverted: ", "execution reverted:"} {
		if i := strings.Index(msg, prefix); i >= 0 {
			if reason := strings.TrimSpace(msg[i+len(prefix):]); reason != "" {
				return reason
			}
		}
	}

	return ""
}
