package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	SyncErrorBadInput         = "SPLADMIN_BAD_INPUT"
	SyncErrorConnectivity     = "SPLADMIN_CONNECTIVITY"
	SyncErrorNotFound         = "SPLADMIN_ENTITY_NOT_FOUND"
	SyncErrorReferenceMissing = "SPLADMIN_REFERENCE_MISSING"
	SyncErrorBadPath          = "SPLADMIN_BAD_PATH"
	SyncErrorUnauthorized     = "SPLADMIN_UNAUTHORIZED"
	SyncErrorInternal         = "SPLADMIN_INTERNAL"
)

// ConnectivityError wraps a backend transport failure. Listing failures
// propagate out of the engine; per-entity mutation failures are logged and
// contained to the entity they concern.
func ConnectivityError(err error, message string, metadata map[string]any) error {
	if err == nil {
		return nil
	}
	wrapped := goerrors.Wrap(err, goerrors.CategoryExternal, message).
		WithCode(http.StatusBadGateway).
		WithTextCode(SyncErrorConnectivity)
	if len(metadata) > 0 {
		wrapped.WithMetadata(metadata)
	}
	return wrapped
}

// ReferenceError reports a cross-reference validation failure: a value
// that names a capability, role, or app absent from the destination's own
// inventory. Never fatal; the offending assignment is dropped.
func ReferenceError(message string, metadata map[string]any) error {
	err := goerrors.New(message, goerrors.CategoryValidation).
		WithCode(http.StatusUnprocessableEntity).
		WithTextCode(SyncErrorReferenceMissing)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func syncErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureSyncErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not found"):
		return newSyncError(err.Error(), goerrors.CategoryNotFound, SyncErrorNotFound)
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "session"):
		return newSyncError(err.Error(), goerrors.CategoryAuth, SyncErrorUnauthorized)
	case strings.Contains(msg, "malformed raw diff path"):
		return newSyncError(err.Error(), goerrors.CategoryInternal, SyncErrorBadPath)
	case strings.Contains(msg, "connection"), strings.Contains(msg, "timeout"), strings.Contains(msg, "refused"):
		return newSyncError(err.Error(), goerrors.CategoryExternal, SyncErrorConnectivity)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newSyncError(err.Error(), goerrors.CategoryBadInput, SyncErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureSyncErrorEnvelope(mapped)
}

func newSyncError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureSyncErrorEnvelope(
		goerrors.New(message, category).WithTextCode(textCode),
	)
}

func ensureSyncErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = syncHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultSyncTextCode(err.Category)
	}
	return err
}

func defaultSyncTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return SyncErrorBadInput
	case goerrors.CategoryNotFound:
		return SyncErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return SyncErrorUnauthorized
	case goerrors.CategoryExternal:
		return SyncErrorConnectivity
	default:
		return SyncErrorInternal
	}
}

func syncHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
