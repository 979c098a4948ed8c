package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/contacttrace/internal/common"
	"github.com/dmitrijs2005/contacttrace/internal/rpcx"
	"github.com/dmitrijs2005/contacttrace/internal/server/commands"
)

type GRPCClient struct {
	endpointURL string
	conn        grpc.ClientConnInterface
	closer      io.Closer

	mu          sync.RWMutex
	accessToken string
}

// NewGRPCClient connects to endpointURL without transport security. Extra
// options are appended after the defaults.
func NewGRPCClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	options := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(rpcx.CodecName)),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, options...)
	if err != nil {
		return nil, err
	}
	return &GRPCClient{endpointURL: endpointURL, conn: conn, closer: conn}, nil
}

func (s *GRPCClient) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// SetAccessToken sets the token sent with every later call, normally the MFA
// token delivered by push after CreateProfile.
func (s *GRPCClient) SetAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = token
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func invoke[R any](ctx context.Context, s *GRPCClient, method string, req any) (R, error) {
	var out R

	s.mu.RLock()
	token := s.accessToken
	s.mu.RUnlock()
	if token != "" {
		ctx = withAccessToken(ctx, token)
	}

	if err := s.conn.Invoke(ctx, rpcx.FullMethod(method), req, &out); err != nil {
		return out, mapError(err)
	}
	return out, nil
}

func (s *GRPCClient) CreateProfile(ctx context.Context, cmd commands.CreateProfileCommand) (commands.CreateProfileResult, error) {
	return invoke[commands.CreateProfileResult](ctx, s, rpcx.MethodCreateProfile, cmd)
}

func (s *GRPCClient) ReportLocation(ctx context.Context, cmd commands.ReportLocationCommand) (commands.ReportLocationResult, error) {
	return invoke[commands.ReportLocationResult](ctx, s, rpcx.MethodReportLocation, cmd)
}

func (s *GRPCClient) AddContacts(ctx context.Context, cmd commands.AddContactsCommand) (commands.AddContactsResult, error) {
	return invoke[commands.AddContactsResult](ctx, s, rpcx.MethodAddContacts, cmd)
}

func (s *GRPCClient) UpdatePushToken(ctx context.Context, cmd commands.UpdatePushTokenCommand) (commands.UpdatePushTokenResult, error) {
	return invoke[commands.UpdatePushTokenResult](ctx, s, rpcx.MethodUpdatePushToken, cmd)
}

func (s *GRPCClient) ClearContactLocation(ctx context.Context, cmd commands.ClearContactLocationCommand) (commands.ClearContactLocationResult, error) {
	return invoke[commands.ClearContactLocationResult](ctx, s, rpcx.MethodClearContactLocation, cmd)
}

func (s *GRPCClient) ExportContacts(ctx context.Context, cmd commands.ExportContactsCommand) (commands.ExportContactsResult, error) {
	return invoke[commands.ExportContactsResult](ctx, s, rpcx.MethodExportContacts, cmd)
}

// SendJSON decodes payload as the command called name and submits it.
func (s *GRPCClient) SendJSON(ctx context.Context, name string, payload []byte) (any, error) {
	switch name {
	case commands.NameCreateProfile:
		return sendJSON(ctx, payload, s.CreateProfile)
	case commands.NameUpdatePushToken:
		return sendJSON(ctx, payload, s.UpdatePushToken)
	case commands.NameReportLocation:
		return sendJSON(ctx, payload, s.ReportLocation)
	case commands.NameAddContacts:
		return sendJSON(ctx, payload, s.AddContacts)
	case commands.NameClearContactLocation:
		return sendJSON(ctx, payload, s.ClearContactLocation)
	case commands.NameExportContacts:
		return sendJSON(ctx, payload, s.ExportContacts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
}

func sendJSON[C, R any](ctx context.Context, payload []byte, send func(context.Context, C) (R, error)) (any, error) {
	var cmd C
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	return send(ctx, cmd)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.InvalidArgument:
		return validationError(st)
	case codes.NotFound:
		return fmt.Errorf("%s: %w", st.Message(), common.ErrorNotFound)
	case codes.Aborted:
		return fmt.Errorf("%s: %w", st.Message(), common.ErrorConflict)
	case codes.Canceled:
		return common.ErrorCanceled
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%s: %w", st.Message(), ErrUnauthorized)
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

func validationError(st *status.Status) error {
	var failures []common.FieldFailure
	for _, d := range st.Details() {
		br, ok := d.(*errdetails.BadRequest)
		if !ok {
			continue
		}
		for _, v := range br.GetFieldViolations() {
			failures = append(failures, common.FieldFailure{Field: v.GetField(), Message: v.GetDescription()})
		}
	}
	if len(failures) == 0 {
		failures = append(failures, common.FieldFailure{Field: "Command", Message: st.Message()})
	}
	return common.NewValidationError(failures...)
}
