package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/wakevault/internal/common"
	"github.com/dmitrijs2005/wakevault/internal/escrow"
)

var kindCodes = map[escrow.Kind]codes.Code{
	escrow.KindState:         codes.FailedPrecondition,
	escrow.KindTiming:        codes.FailedPrecondition,
	escrow.KindAuthorization: codes.PermissionDenied,
	escrow.KindParameter:     codes.InvalidArgument,
	escrow.KindArithmetic:    codes.OutOfRange,
	escrow.KindConcurrency:   codes.Aborted,
	escrow.KindAttestation:   codes.Unauthenticated,
}

// codeOf maps err onto a gRPC status code. Escrow errors are classified by
// kind; everything unrecognized is Internal.
func codeOf(err error) codes.Code {
	if c, ok := kindCodes[escrow.KindOf(err)]; ok {
		return c
	}
	switch {
	case errors.Is(err, common.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, common.ErrInvalidSignature):
		return codes.Unauthenticated
	case errors.Is(err, common.ErrMalformedRequest), errors.Is(err, common.ErrAccountNotDeclared):
		return codes.InvalidArgument
	case errors.Is(err, common.ErrFaucetDisabled):
		return codes.Unimplemented
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	}
	return codes.Internal
}

func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	code := codeOf(err)
	if code == codes.Internal {
		s.logger.Error(ctx, "request failed", "error", err.Error())
		return status.Error(codes.Internal, "internal error")
	}
	// escrow rejections keep their "Code: message" form so clients can
	// match on the code
	if ec := escrow.CodeOf(err); ec != "" {
		return status.Error(code, ec+": "+errorMessage(err))
	}
	return status.Error(code, err.Error())
}

func errorMessage(err error) string {
	var e *escrow.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
