package logger

import (
	"time"

	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------------
// HTTP
// ---------------------------------------------------------------------------------

func RequestID(v string) zap.Field       { return zap.String("request_id", v) }
func Method(v string) zap.Field          { return zap.String("method", v) }
func Path(v string) zap.Field            { return zap.String("path", v) }
func Status(v int) zap.Field             { return zap.Int("status", v) }
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }
func Bytes(v int) zap.Field              { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field        { return zap.String("client_ip", v) }

// ---------------------------------------------------------------------------------
// Dominio
// ---------------------------------------------------------------------------------

// ProjectID identifica al tenant resuelto por TenantGate.
func ProjectID(v string) zap.Field { return zap.String("project_id", v) }

func AdminID(v string) zap.Field { return zap.String("admin_id", v) }
func UserID(v string) zap.Field  { return zap.String("user_id", v) }

// Provider es el proveedor OAuth (google, github).
func Provider(v string) zap.Field { return zap.String("provider", v) }

// AuthMethod es el tag con el que se emitió el refresh token.
func AuthMethod(v string) zap.Field { return zap.String("auth_method", v) }

// Email loguea sólo el dominio; la parte local no sale a los logs.
func Email(v string) zap.Field {
	for i := len(v) - 1; i >= 0; i-- {
		if v[i] == '@' {
			return zap.String("email_domain", v[i+1:])
		}
	}
	return zap.String("email_domain", "")
}

// ---------------------------------------------------------------------------------
// Sistema
// ---------------------------------------------------------------------------------

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func Err(err error) zap.Field      { return zap.Error(err) }
func Count(v int) zap.Field        { return zap.Int("count", v) }
func String(key, v string) zap.Field { return zap.String(key, v) }
