// Package errors provides structured error handling with gRPC status
// mapping.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Session errors
	CodeSessionEmptyID       Code = "SESSION_EMPTY_ID"
	CodeSessionAlreadyExists Code = "SESSION_ALREADY_EXISTS"
	CodeSessionAlreadyOver   Code = "SESSION_ALREADY_OVER"
	CodeSessionAborted       Code = "SESSION_ABORTED"

	// Setup errors
	CodeSetupTooFewPlayers Code = "SETUP_TOO_FEW_PLAYERS"
	CodeSetupDuplicateName Code = "SETUP_DUPLICATE_NAME"
	CodeSetupInvalidRole   Code = "SETUP_INVALID_ROLE"

	// Decision errors
	CodeDecisionIllegalTarget Code = "DECISION_ILLEGAL_TARGET"
	CodeDecisionIllegalBid    Code = "DECISION_ILLEGAL_BID"
	CodeDecisionUnknown       Code = "DECISION_UNKNOWN_REQUEST"
	CodeDecisionWrongPlayer   Code = "DECISION_WRONG_PLAYER"
	CodeDecisionTimedOut      Code = "DECISION_TIMED_OUT"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"

	// Provider errors
	CodeProviderUnavailable Code = "PROVIDER_UNAVAILABLE"
	CodeProviderNoDecision  Code = "PROVIDER_NO_DECISION"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeSessionEmptyID,
		CodeSetupTooFewPlayers,
		CodeSetupDuplicateName,
		CodeSetupInvalidRole,
		CodeDecisionIllegalTarget,
		CodeDecisionIllegalBid:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeSessionAlreadyOver,
		CodeSessionAborted,
		CodeDecisionWrongPlayer:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeDecisionUnknown:
		return codes.NotFound

	// AlreadyExists - unique resource constraint
	case CodeSessionAlreadyExists:
		return codes.AlreadyExists

	// DeadlineExceeded - participant or provider ran out of time
	case CodeDecisionTimedOut:
		return codes.DeadlineExceeded

	// Unavailable - upstream provider failures
	case CodeProviderUnavailable:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}
