package provider

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// EIP-1193 provider error codes.
const (
	CodeUserRejected       = 4001
	CodeUnauthorized       = 4100
	CodeUnsupportedMethod  = 4200
	CodeDisconnected       = 4900
	CodeChainDisconnected  = 4901
	CodeUnrecognizedChain  = 4902
	CodeInternalJSONRPC    = -32603
	CodeMethodNotSupported = -32601
)

// RPCError is an error returned by a provider request.
type RPCError struct {
	Code    int
	Message string
	Data    any
}

// NewRPCError creates an RPCError.
func NewRPCError(code int, message string) *RPCError {
	return &RPCError{Code: code, Message: message}
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// AsRPCError extracts an RPCError from err.
func AsRPCError(err error) (*RPCError, bool) {
	var rerr *RPCError
	if errors.As(err, &rerr) {
		return rerr, true
	}
	return nil, false
}

// IsUserRejected reports whether err is a user rejection (4001).
func IsUserRejected(err error) bool {
	rerr, ok := AsRPCError(err)
	return ok && rerr.Code == CodeUserRejected
}

// ErrorMessage returns the human-readable reason carried by err.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if rerr, ok := AsRPCError(err); ok {
		return rerr.Message
	}
	return err.Error()
}

// fromNodeError converts a go-ethereum rpc error into an RPCError, keeping
// the JSON-RPC code and data. Transport errors are returned unchanged.
func fromNodeError(err error) error {
	if err == nil {
		return nil
	}

	var coded rpc.Error
	if !errors.As(err, &coded) {
		return err
	}

	rerr := &RPCError{Code: coded.ErrorCode(), Message: coded.Error()}
	var withData rpc.DataError
	if errors.As(err, &withData) {
		rerr.Data = withData.ErrorData()
	}
	if rerr.Code == CodeMethodNotSupported {
		rerr.Code = CodeUnsupportedMethod
	}
	return rerr
}
