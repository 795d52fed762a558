package grpc

import (
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"studioops/backend/internal/board"
	"studioops/backend/internal/checkout"
	"studioops/backend/internal/domain"
	"studioops/backend/internal/service/appointments"
	"studioops/backend/internal/store"
)

// toStatus maps a service error onto a gRPC status and logs it at the level
// the failure deserves. Internal details never reach the client.
func toStatus(log *slog.Logger, op string, err error, attrs ...any) error {
	attrs = append(attrs, slog.Any("err", err))

	var (
		vErr *domain.ValidationError
		cErr *domain.ConflictError
		gErr *domain.GuardViolation
		pErr *checkout.ProviderError
	)
	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", attrs...)
		return status.Error(codes.InvalidArgument, vErr.Error())
	case errors.Is(err, appointments.ErrOverrideDenied):
		log.Warn(op+" override denied", attrs...)
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.As(err, &cErr):
		log.Info(op+" conflict", attrs...)
		return status.Error(codes.FailedPrecondition, cErr.Error())
	case errors.Is(err, store.ErrIdempotencyConflict):
		log.Info(op+" idempotency conflict", attrs...)
		return status.Error(codes.FailedPrecondition, "This request key was already used for a different appointment. Try again.")
	case errors.Is(err, store.ErrConflict):
		log.Info(op+" conflict", attrs...)
		return status.Error(codes.FailedPrecondition, "That time is no longer available. Pick a different slot.")
	case errors.Is(err, store.ErrChargeInFlight):
		log.Info(op+" charge in flight", attrs...)
		return status.Error(codes.FailedPrecondition, "A card charge is already in progress for this appointment.")
	case errors.Is(err, store.ErrHasPayments):
		log.Info(op+" refused", attrs...)
		return status.Error(codes.FailedPrecondition, "Appointments with recorded payments cannot be deleted.")
	case errors.As(err, &gErr):
		log.Info(op+" refused", attrs...)
		return status.Error(codes.FailedPrecondition, gErr.Reason)
	case errors.Is(err, store.ErrNotFound), errors.Is(err, board.ErrUnknownAppointment):
		log.Info("appointment not found", attrs...)
		return status.Error(codes.NotFound, "appointment not found")
	case errors.As(err, &pErr):
		log.Warn(op+" declined by provider", attrs...)
		return status.Error(codes.Aborted, pErr.Message)
	default:
		log.Error(op+" failed", attrs...)
		return status.Error(codes.Internal, "internal error")
	}
}
