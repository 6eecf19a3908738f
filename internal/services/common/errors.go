package common

import (
	"errors"

	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
	httperrors "github.com/dropDatabas3/tenantauth/internal/http/errors"
)

// MapRepo traduce sentinels de repositorio a AppError.
// notFound permite elegir el error concreto (ErrUserNotFound, ErrProjectNotFound...);
// nil usa el genérico. Un AppError pasa sin cambios.
func MapRepo(err error, notFound *httperrors.AppError) error {
	if err == nil {
		return nil
	}
	var appErr *httperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case repository.IsNotFound(err):
		if notFound == nil {
			notFound = httperrors.ErrNotFound
		}
		return notFound.WithCause(err)
	case repository.IsConflict(err):
		return httperrors.ErrConflict.WithCause(err)
	default:
		return httperrors.ErrInternalServerError.WithCause(err)
	}
}
