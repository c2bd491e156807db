package ports

import "context"

// ChainRPC is a JSON-RPC 2.0 connection to a chain node. Transport failures
// are reported as domain.ErrNodeUnavailable or domain.ErrRPCTimeout.
type ChainRPC interface {
	Call(ctx context.Context, result interface{}, method string, params ...interface{}) error
}
