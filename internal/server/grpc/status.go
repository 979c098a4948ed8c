package grpc

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/contacttrace/internal/common"
)

// toStatus maps a pipeline failure onto a gRPC status. Validation failures
// carry every field violation as a BadRequest detail.
func toStatus(err error) error {
	switch common.KindOf(err) {
	case common.KindValidation:
		return validationStatus(err).Err()
	case common.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	case common.KindConflict:
		return status.Error(codes.Aborted, err.Error())
	case common.KindCanceled:
		if errors.Is(err, context.DeadlineExceeded) {
			return status.Error(codes.DeadlineExceeded, "deadline exceeded")
		}
		return status.Error(codes.Canceled, "canceled")
	default:
		return status.Error(codes.Unavailable, "dependency unavailable")
	}
}

func validationStatus(err error) *status.Status {
	st := status.New(codes.InvalidArgument, "validation failed")

	var verr *common.ValidationError
	if !errors.As(err, &verr) {
		return st
	}
	br := &errdetails.BadRequest{}
	for _, f := range verr.Failures {
		br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
			Field:       f.Field,
			Description: f.Message,
		})
	}
	if detailed, derr := st.WithDetails(br); derr == nil {
		return detailed
	}
	return st
}
