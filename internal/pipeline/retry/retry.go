// Package retry classifies block-processing errors as transient or terminal.
// The processor retries every failed block up to its attempt budget; the
// class only feeds logs and metrics.
package retry

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
	substraterpc "github.com/selendra/selendra-explorer-sub000/internal/chain/substrate/rpc"
	"github.com/selendra/selendra-explorer-sub000/internal/circuitbreaker"
	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
)

type Class string

const (
	ClassTerminal  Class = "terminal"
	ClassTransient Class = "transient"
)

type Decision struct {
	Class  Class
	Reason string
}

func (d Decision) IsTransient() bool {
	return d.Class == ClassTransient
}

type classifiedError struct {
	err    error
	class  Class
	reason string
}

func (e *classifiedError) Error() string {
	return e.err.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.err
}

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: ClassTransient, reason: "explicit_transient"}
}

func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: ClassTerminal, reason: "explicit_terminal"}
}

func Classify(err error) Decision {
	if err == nil {
		return Decision{Class: ClassTerminal, Reason: "nil_error"}
	}

	var marked *classifiedError
	if errors.As(err, &marked) {
		return Decision{Class: marked.class, Reason: marked.reason}
	}

	if errors.Is(err, context.Canceled) {
		return Decision{Class: ClassTerminal, Reason: "context_canceled"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Decision{Class: ClassTransient, Reason: "context_deadline_exceeded"}
	}
	if errors.Is(err, model.ErrNotFound) {
		return Decision{Class: ClassTerminal, Reason: "not_found"}
	}
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return Decision{Class: ClassTransient, Reason: "circuit_open"}
	}

	var subErr *substraterpc.RPCError
	if errors.As(err, &subErr) {
		return classifyJSONRPCCode(subErr.Code)
	}
	var ethErr rpc.Error
	if errors.As(err, &ethErr) {
		return classifyJSONRPCCode(ethErr.ErrorCode())
	}

	switch {
	case errors.Is(err, model.ErrMalformedInteger),
		errors.Is(err, model.ErrTruncatedField),
		errors.Is(err, model.ErrUnresolvableCallBoundary):
		return Decision{Class: ClassTerminal, Reason: "decode_error"}
	case errors.Is(err, model.ErrInvalidResponseShape):
		return Decision{Class: ClassTerminal, Reason: "invalid_response_shape"}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Decision{Class: ClassTransient, Reason: "net_timeout"}
	}

	lower := strings.ToLower(err.Error())
	if containsAny(lower, terminalMessageTokens) {
		return Decision{Class: ClassTerminal, Reason: "message_terminal"}
	}
	if containsAny(lower, transientMessageTokens) {
		return Decision{Class: ClassTransient, Reason: "message_transient"}
	}

	if errors.Is(err, model.ErrProvider) {
		return Decision{Class: ClassTransient, Reason: "provider_error"}
	}
	return Decision{Class: ClassTerminal, Reason: "unknown_terminal_default"}
}

func classifyJSONRPCCode(code int) Decision {
	if code == -32603 || code == -32005 {
		return Decision{Class: ClassTransient, Reason: "jsonrpc_server_transient"}
	}
	if code <= -32000 && code >= -32099 {
		return Decision{Class: ClassTransient, Reason: "jsonrpc_server_range"}
	}
	return Decision{Class: ClassTerminal, Reason: "jsonrpc_terminal"}
}

func containsAny(msg string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}

var transientMessageTokens = []string{
	"timeout",
	"timed out",
	"temporar",
	"unavailable",
	"connection reset",
	"connection refused",
	"broken pipe",
	"econnreset",
	"econnrefused",
	"too many requests",
	"rate limit",
	"http status 429",
	"http status 502",
	"http status 503",
	"http status 504",
	"server closed idle connection",
}

var terminalMessageTokens = []string{
	"no extrinsics decoded",
	"invalid argument",
	"invalid params",
	"method not found",
	"parse error",
	"execution reverted",
	"constraint violation",
}
