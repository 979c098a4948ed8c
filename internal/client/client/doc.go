// Package client contains the client side of the contact tracing service.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface) with one
//     method per command: CreateProfile, UpdatePushToken, ReportLocation,
//     AddContacts, ClearContactLocation and ExportContacts.
//  2. A concrete gRPC implementation (see GRPCClient) that speaks the JSON
//     codec registered by rpcx, attaches the access token received through
//     push, and maps gRPC status codes back to errors.
//
// # Error Handling
//
// Transport conditions are exposed as sentinel errors that callers can match
// with errors.Is: ErrUnavailable, ErrUnauthorized. Pipeline failures come
// back as the common taxonomy: a *common.ValidationError rebuilt from the
// BadRequest details, common.ErrorNotFound, common.ErrorConflict and
// common.ErrorCanceled.
//
// GRPCClient is safe for concurrent use. All operations accept a
// context.Context and honor cancellation.
package client
