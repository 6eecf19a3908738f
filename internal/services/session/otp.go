package session

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
	"github.com/dropDatabas3/tenantauth/internal/email"
	httperrors "github.com/dropDatabas3/tenantauth/internal/http/errors"
	"github.com/dropDatabas3/tenantauth/internal/observability/logger"
	"github.com/dropDatabas3/tenantauth/internal/services/common"
	tokens "github.com/dropDatabas3/tenantauth/internal/security/token"
)

const otpDigits = 6

// SendOTP genera y envía un código de 6 dígitos. Un OTP vigente se
// actualiza en el lugar (nuevo código, misma expiración); si no hay o venció
// se crea uno nuevo. La unicidad por email la garantiza el upsert.
func (m *manager) SendOTP(ctx context.Context, in SendOTPInput) (*Result, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("session"),
		logger.Op("SendOTP"),
	)

	in.Email = normEmail(in.Email)
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	if in.Email == "" {
		return nil, httperrors.ErrMissingFields
	}
	if err := m.principalExists(ctx, in.Email, in.IsAdmin, in.ProjectID); err != nil {
		return nil, err
	}

	code, err := tokens.GenerateNumericCode(otpDigits)
	if err != nil {
		return nil, httperrors.ErrInternalServerError.WithCause(err)
	}

	now := m.deps.Now()
	otp := &repository.OTP{Email: in.Email, Code: code, ExpiresAt: now.Add(m.deps.TTL.OTP)}

	otps := m.deps.Store.OTPs()
	if cur, err := otps.Get(ctx, in.Email); err == nil {
		if cur.ExpiresAt.After(now) {
			otp.ExpiresAt = cur.ExpiresAt
		}
	} else if !repository.IsNotFound(err) {
		return nil, common.MapRepo(err, nil)
	}
	if err := otps.Upsert(ctx, otp); err != nil {
		return nil, common.MapRepo(err, nil)
	}

	html, err := email.RenderOTP(email.OTPVars{Code: code, TTL: otp.ExpiresAt.Sub(now).Round(time.Second).String()})
	if err != nil {
		return nil, httperrors.ErrInternalServerError.WithCause(err)
	}
	if err := m.deps.Mailer.Send(ctx, email.Message{
		To:      []string{in.Email},
		Subject: "Tu código de verificación",
		HTML:    html,
	}); err != nil {
		log.Error("otp delivery failed", logger.Email(in.Email), logger.Err(err))
		return nil, httperrors.ErrMailDelivery.WithCause(err)
	}

	log.Info("otp sent", logger.Email(in.Email))
	return &Result{Success: true}, nil
}

func (m *manager) principalExists(ctx context.Context, addr string, isAdmin bool, projectID string) error {
	if isAdmin {
		_, err := m.deps.Store.Admins().GetByEmail(ctx, addr)
		return common.MapRepo(err, httperrors.ErrAdminNotFound)
	}
	u, err := m.deps.Store.Users().GetByEmail(ctx, addr)
	if err != nil {
		return common.MapRepo(err, httperrors.ErrUserNotFound)
	}
	if projectID == "" {
		return nil
	}
	_, err = m.deps.Store.Users().GetMembership(ctx, u.ID, projectID)
	return common.MapRepo(err, httperrors.ErrMembershipNotFound)
}

// VerifyAdminOTP valida el código contra el admin y lo marca verificado.
func (m *manager) VerifyAdminOTP(ctx context.Context, in VerifyOTPInput) (res *Result, err error) {
	defer func() { m.observe(repository.AuthOTP, err) }()

	in.Email = normEmail(in.Email)
	if in.Email == "" || in.Code == "" {
		return nil, httperrors.ErrMissingFields
	}

	otp, err := m.deps.Store.OTPs().Get(ctx, in.Email)
	if err != nil {
		return nil, common.MapRepo(err, httperrors.ErrOTPNotFound)
	}
	admin, err := m.deps.Store.Admins().GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, common.MapRepo(err, httperrors.ErrAdminNotFound)
	}
	if err := m.checkOTP(ctx, otp, in.Code); err != nil {
		return nil, err
	}

	if !admin.Verified {
		verified := true
		if err := m.deps.Store.Admins().Update(ctx, admin.ID, repository.UpdateAdminInput{Verified: &verified}); err != nil {
			return nil, common.MapRepo(err, httperrors.ErrAdminNotFound)
		}
	}
	if err := m.consumeOTP(ctx, in.Email); err != nil {
		return nil, err
	}
	logger.From(ctx).Info("admin verified via otp", logger.Component("session"), logger.AdminID(admin.ID))
	return &Result{Success: true}, nil
}

// VerifyUserOTP es la variante por membresía de proyecto.
func (m *manager) VerifyUserOTP(ctx context.Context, in VerifyOTPInput) (res *Result, err error) {
	defer func() { m.observe(repository.AuthOTP, err) }()

	in.Email = normEmail(in.Email)
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	if in.Email == "" || in.Code == "" || in.ProjectID == "" {
		return nil, httperrors.ErrMissingFields
	}

	otp, err := m.deps.Store.OTPs().Get(ctx, in.Email)
	if err != nil {
		return nil, common.MapRepo(err, httperrors.ErrOTPNotFound)
	}
	users := m.deps.Store.Users()
	u, err := users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, common.MapRepo(err, httperrors.ErrUserNotFound)
	}
	mb, err := users.GetMembership(ctx, u.ID, in.ProjectID)
	if err != nil {
		return nil, common.MapRepo(err, httperrors.ErrMembershipNotFound)
	}
	if err := m.checkOTP(ctx, otp, in.Code); err != nil {
		return nil, err
	}

	if !mb.Verified {
		verified := true
		if err := users.UpdateMembership(ctx, u.ID, in.ProjectID, repository.UpdateMembershipInput{Verified: &verified}); err != nil {
			return nil, common.MapRepo(err, httperrors.ErrMembershipNotFound)
		}
	}
	if err := m.consumeOTP(ctx, in.Email); err != nil {
		return nil, err
	}
	logger.From(ctx).Info("membership verified via otp", logger.Component("session"), logger.UserID(u.ID), logger.ProjectID(in.ProjectID))
	return &Result{Success: true}, nil
}

// checkOTP: código distinto es BadRequest; vencido (aunque sea correcto)
// borra el OTP y es Gone.
func (m *manager) checkOTP(ctx context.Context, otp *repository.OTP, code string) error {
	if subtle.ConstantTimeCompare([]byte(otp.Code), []byte(strings.TrimSpace(code))) != 1 {
		return httperrors.ErrInvalidOTP
	}
	if !otp.ExpiresAt.After(m.deps.Now()) {
		if err := m.deps.Store.OTPs().Delete(ctx, otp.Email); err != nil && !repository.IsNotFound(err) {
			return common.MapRepo(err, nil)
		}
		return httperrors.ErrOTPExpired
	}
	return nil
}

// consumeOTP borra el OTP. Si otro verify lo borró primero, éste pierde.
func (m *manager) consumeOTP(ctx context.Context, addr string) error {
	return common.MapRepo(m.deps.Store.OTPs().Delete(ctx, addr), httperrors.ErrOTPNotFound)
}
