// Package rpcx holds the wire contract shared by the gRPC server and client:
// the service and method names and the JSON codec that carries commands.
package rpcx

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "contacttrace.ContactTracing"

const (
	MethodCreateProfile        = "CreateProfile"
	MethodUpdatePushToken      = "UpdatePushToken"
	MethodReportLocation       = "ReportLocation"
	MethodAddContacts          = "AddContacts"
	MethodClearContactLocation = "ClearContactLocation"
	MethodExportContacts       = "ExportContacts"
)

// FullMethod returns the path gRPC uses for method, e.g.
// "/contacttrace.ContactTracing/ReportLocation".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// CodecName is the content subtype selected by clients ("application/grpc+json").
const CodecName = "json"

// Codec marshals messages as JSON so commands travel in their wire shape
// without generated protobuf types.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (Codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (Codec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(Codec{})
}
