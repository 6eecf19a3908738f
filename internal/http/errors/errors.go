package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind clasifica un AppError. Los tests y la capa HTTP deciden en base al Kind,
// nunca en base al texto del mensaje.
type Kind string

const (
	KindNotFound     Kind = "NOT_FOUND"
	KindBadRequest   Kind = "BAD_REQUEST"
	KindConflict     Kind = "CONFLICT"
	KindGone         Kind = "GONE"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindForbidden    Kind = "FORBIDDEN"
	KindTooMany      Kind = "TOO_MANY_REQUESTS"
	KindInternal     Kind = "INTERNAL"
)

// AppError define la estructura estándar para errores de la aplicación.
type AppError struct {
	Kind       Kind   `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"` // No se serializa, usado para el header
	Err        error  `json:"-"` // Causa original, sólo para logs
}

// Error implementa la interfaz error
func (e *AppError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap permite acceder al error original
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is compara por Code, así errors.Is(err, ErrUserNotFound) funciona con copias
// creadas por WithDetail/WithCause.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New crea un nuevo AppError
func New(kind Kind, status int, code, message string) *AppError {
	return &AppError{
		Kind:       kind,
		Code:       code,
		Message:    message,
		HTTPStatus: status,
	}
}

// FromError intenta convertir un error genérico en un AppError.
// Si no es un AppError, devuelve un error interno conservando la causa.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServerError.WithCause(err)
}

// KindOf devuelve el Kind de err. Errores que no son AppError cuentan como internos.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return FromError(err).Kind
}

// IsKind es un atajo para KindOf(err) == kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// WithDetail agrega detalles adicionales al error.
// Devuelve una COPIA del error para no mutar las variables globales base
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithDetailf es WithDetail con formato.
func (e *AppError) WithDetailf(format string, args ...any) *AppError {
	return e.WithDetail(fmt.Sprintf(format, args...))
}

// WithCause agrega el error original (causa)
// Devuelve una COPIA del error
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// =================================================================================
// CATÁLOGO
// =================================================================================

// ---------------------------------------------------------------------------------
// 400 Bad Request
// ---------------------------------------------------------------------------------

var (
	ErrBadRequest = New(KindBadRequest, http.StatusBadRequest,
		"BAD_REQUEST", "La solicitud contiene sintaxis inválida o parámetros faltantes.")

	ErrInvalidJSON = New(KindBadRequest, http.StatusBadRequest,
		"INVALID_JSON", "El cuerpo de la solicitud no es un JSON válido.")

	ErrMissingFields = New(KindBadRequest, http.StatusBadRequest,
		"MISSING_FIELDS", "Faltan campos requeridos en la solicitud.")

	ErrInvalidCredentials = New(KindBadRequest, http.StatusBadRequest,
		"INVALID_CREDENTIALS", "Las credenciales proporcionadas son inválidas.")

	ErrPasswordNotSet = New(KindBadRequest, http.StatusBadRequest,
		"PASSWORD_NOT_SET", "El usuario no tiene contraseña para este proyecto.")

	ErrInvalidOTP = New(KindBadRequest, http.StatusBadRequest,
		"INVALID_OTP", "El código ingresado no es correcto.")

	ErrInvalidAPIKey = New(KindBadRequest, http.StatusBadRequest,
		"INVALID_API_KEY", "La API key no corresponde al client key.")

	ErrInvalidClientKey = New(KindBadRequest, http.StatusBadRequest,
		"INVALID_CLIENT_KEY", "El client key no pertenece a ningún proyecto.")

	ErrPasswordTooWeak = New(KindBadRequest, http.StatusBadRequest,
		"PASSWORD_TOO_WEAK", "La contraseña no cumple con los requisitos de seguridad.")

	ErrUnknownProvider = New(KindBadRequest, http.StatusBadRequest,
		"UNKNOWN_PROVIDER", "El proveedor OAuth no está soportado.")

	ErrEmailNotVerified = New(KindBadRequest, http.StatusBadRequest,
		"EMAIL_NOT_VERIFIED", "El proveedor no verificó el email de la cuenta.")
)

// ---------------------------------------------------------------------------------
// 401 Unauthorized
// ---------------------------------------------------------------------------------

var (
	ErrUnauthorized = New(KindUnauthorized, http.StatusUnauthorized,
		"UNAUTHORIZED", "No autorizado. Se requiere autenticación.")

	ErrTokenInvalid = New(KindUnauthorized, http.StatusUnauthorized,
		"TOKEN_INVALID", "El token es inválido, expiró o está malformado.")

	ErrRefreshTokenInvalid = New(KindUnauthorized, http.StatusUnauthorized,
		"REFRESH_TOKEN_INVALID", "El refresh token no está activo.")
)

// ---------------------------------------------------------------------------------
// 403 Forbidden
// ---------------------------------------------------------------------------------

var (
	ErrForbidden = New(KindForbidden, http.StatusForbidden,
		"FORBIDDEN", "No tiene permisos para realizar esta acción.")
)

// ---------------------------------------------------------------------------------
// 404 Not Found
// ---------------------------------------------------------------------------------

var (
	ErrNotFound = New(KindNotFound, http.StatusNotFound,
		"NOT_FOUND", "El recurso solicitado no fue encontrado.")

	ErrUserNotFound = New(KindNotFound, http.StatusNotFound,
		"USER_NOT_FOUND", "El usuario especificado no existe.")

	ErrAdminNotFound = New(KindNotFound, http.StatusNotFound,
		"ADMIN_NOT_FOUND", "El administrador especificado no existe.")

	ErrMembershipNotFound = New(KindNotFound, http.StatusNotFound,
		"MEMBERSHIP_NOT_FOUND", "El usuario no pertenece al proyecto.")

	ErrProjectNotFound = New(KindNotFound, http.StatusNotFound,
		"PROJECT_NOT_FOUND", "El proyecto especificado no existe.")

	ErrOTPNotFound = New(KindNotFound, http.StatusNotFound,
		"OTP_NOT_FOUND", "No hay un código pendiente para este email.")

	ErrProviderNotConfigured = New(KindNotFound, http.StatusNotFound,
		"PROVIDER_NOT_CONFIGURED", "El proveedor OAuth no está configurado para el proyecto.")

	ErrStateNotFound = New(KindNotFound, http.StatusNotFound,
		"STATE_NOT_FOUND", "El parámetro state no existe o ya fue utilizado.")

	ErrChallengeNotFound = New(KindNotFound, http.StatusNotFound,
		"CHALLENGE_NOT_FOUND", "No hay un challenge pendiente.")

	ErrRouteNotFound = New(KindNotFound, http.StatusNotFound,
		"ROUTE_NOT_FOUND", "La ruta solicitada no existe.")
)

// ---------------------------------------------------------------------------------
// 405
// ---------------------------------------------------------------------------------

var (
	ErrMethodNotAllowed = New(KindBadRequest, http.StatusMethodNotAllowed,
		"METHOD_NOT_ALLOWED", "Método HTTP no permitido para esta ruta.")
)

// ---------------------------------------------------------------------------------
// 409 Conflict
// ---------------------------------------------------------------------------------

var (
	ErrConflict = New(KindConflict, http.StatusConflict,
		"CONFLICT", "La solicitud entra en conflicto con el estado actual del servidor.")

	ErrEmailAlreadyInUse = New(KindConflict, http.StatusConflict,
		"EMAIL_ALREADY_IN_USE", "El correo electrónico ya está registrado.")

	ErrProjectNameTaken = New(KindConflict, http.StatusConflict,
		"PROJECT_NAME_TAKEN", "Ya existe un proyecto con ese nombre.")
)

// ---------------------------------------------------------------------------------
// 410 Gone - artefactos con ventana de tiempo que existieron pero expiraron
// ---------------------------------------------------------------------------------

var (
	ErrOTPExpired = New(KindGone, http.StatusGone,
		"OTP_EXPIRED", "El código expiró, solicite uno nuevo.")

	ErrStateExpired = New(KindGone, http.StatusGone,
		"STATE_EXPIRED", "El flujo OAuth expiró, inicie sesión nuevamente.")

	ErrRefreshTokenExpired = New(KindGone, http.StatusGone,
		"REFRESH_TOKEN_EXPIRED", "La sesión expiró, inicie sesión nuevamente.")

	ErrChallengeExpired = New(KindGone, http.StatusGone,
		"CHALLENGE_EXPIRED", "El challenge expiró, genere uno nuevo.")
)

// ---------------------------------------------------------------------------------
// 429
// ---------------------------------------------------------------------------------

var (
	ErrRateLimitExceeded = New(KindTooMany, http.StatusTooManyRequests,
		"RATE_LIMIT_EXCEEDED", "Ha excedido el límite de solicitudes. Intente más tarde.")
)

// ---------------------------------------------------------------------------------
// 500+
// ---------------------------------------------------------------------------------

var (
	ErrInternalServerError = New(KindInternal, http.StatusInternalServerError,
		"INTERNAL_SERVER_ERROR", "Ocurrió un error interno en el servidor.")

	ErrMailDelivery = New(KindInternal, http.StatusInternalServerError,
		"MAIL_DELIVERY_FAILED", "No se pudo enviar el email.")

	ErrProviderExchange = New(KindInternal, http.StatusInternalServerError,
		"PROVIDER_EXCHANGE_FAILED", "El proveedor OAuth rechazó el intercambio.")

	ErrDecryption = New(KindInternal, http.StatusInternalServerError,
		"DECRYPTION_FAILED", "No se pudo descifrar un secreto almacenado.")

	ErrTokenIssueFailed = New(KindInternal, http.StatusInternalServerError,
		"TOKEN_ISSUE_FAILED", "No se pudo emitir el token.")
)
