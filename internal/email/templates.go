package email

import (
	"bytes"
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// MagicLinkVars son las variables de templates/magic_link.html.
type MagicLinkVars struct {
	Link string
	TTL  string
}

// OTPVars son las variables de templates/otp.html.
type OTPVars struct {
	Code string
	TTL  string
}

func render(name string, vars any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, vars); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderMagicLink arma el cuerpo del email de magic link.
func RenderMagicLink(v MagicLinkVars) (string, error) { return render("magic_link.html", v) }

// RenderOTP arma el cuerpo del email con el código.
func RenderOTP(v OTPVars) (string, error) { return render("otp.html", v) }
