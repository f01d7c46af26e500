package errors

import (
	stderrors "errors"
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestIsMatchesByCode(t *testing.T) {
	err := Wrap(CodeNotFound, "session missing", stderrors.New("sql: no rows"))

	if !stderrors.Is(err, New(CodeNotFound, "")) {
		t.Fatalf("expected error to match CodeNotFound")
	}
	if stderrors.Is(err, New(CodeSessionAlreadyExists, "")) {
		t.Fatalf("expected error not to match a different code")
	}
}

func TestUnwrapReachesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(CodeUnknown, "save failed", cause)

	if !stderrors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable through Unwrap")
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeSessionEmptyID, codes.InvalidArgument},
		{CodeSetupTooFewPlayers, codes.InvalidArgument},
		{CodeSessionAlreadyExists, codes.AlreadyExists},
		{CodeSessionAlreadyOver, codes.FailedPrecondition},
		{CodeNotFound, codes.NotFound},
		{CodeDecisionTimedOut, codes.DeadlineExceeded},
		{CodeProviderUnavailable, codes.Unavailable},
		{CodeUnknown, codes.Internal},
		{Code("SOMETHING_NEW"), codes.Internal},
	}
	for _, tt := range tests {
		if got := tt.code.GRPCCode(); got != tt.want {
			t.Errorf("GRPCCode(%s) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestToGRPCStatusCarriesDetails(t *testing.T) {
	err := WithMetadata(CodeSetupInvalidRole, "unknown role", map[string]string{"role": "bard"})

	st, ok := status.FromError(err.ToGRPCStatus("en", "Unknown role."))
	if !ok {
		t.Fatalf("expected a gRPC status error")
	}
	if st.Code() != codes.InvalidArgument {
		t.Fatalf("status code = %v, want %v", st.Code(), codes.InvalidArgument)
	}

	var info *errdetails.ErrorInfo
	var localized *errdetails.LocalizedMessage
	for _, detail := range st.Details() {
		switch d := detail.(type) {
		case *errdetails.ErrorInfo:
			info = d
		case *errdetails.LocalizedMessage:
			localized = d
		}
	}
	if info == nil {
		t.Fatalf("expected ErrorInfo detail")
	}
	if info.Reason != string(CodeSetupInvalidRole) || info.Domain != Domain {
		t.Fatalf("ErrorInfo = %q/%q, want %q/%q", info.Reason, info.Domain, CodeSetupInvalidRole, Domain)
	}
	if info.Metadata["role"] != "bard" {
		t.Fatalf("metadata role = %q, want %q", info.Metadata["role"], "bard")
	}
	if localized == nil || localized.Message != "Unknown role." {
		t.Fatalf("expected localized message to survive the round trip")
	}
}
