package password

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// Policy define los requisitos mínimos de una contraseña nueva.
type Policy struct {
	MinLength     int  `yaml:"min_length"`
	RequireUpper  bool `yaml:"require_upper"`
	RequireLower  bool `yaml:"require_lower"`
	RequireDigit  bool `yaml:"require_digit"`
	RequireSymbol bool `yaml:"require_symbol"`

	blacklist map[string]struct{}
}

// WithBlacklist carga un archivo de contraseñas comunes (una por línea, # comenta).
// Path vacío no hace nada.
func (p Policy) WithBlacklist(path string) (Policy, error) {
	if strings.TrimSpace(path) == "" {
		return p, nil
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return p, err
	}
	defer f.Close()

	bl := make(map[string]struct{})
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.ToLower(strings.TrimSpace(sc.Text()))
		if s != "" && !strings.HasPrefix(s, "#") {
			bl[s] = struct{}{}
		}
	}
	p.blacklist = bl
	return p, sc.Err()
}

// Validate devuelve los motivos de rechazo; vacío significa aceptada.
func (p Policy) Validate(s string) []string {
	var reasons []string
	if len([]rune(s)) < p.MinLength {
		reasons = append(reasons, "too_short")
	}
	var hasU, hasL, hasD, hasS bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasU = true
		case unicode.IsLower(r):
			hasL = true
		case unicode.IsDigit(r):
			hasD = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasS = true
		}
	}
	if p.RequireUpper && !hasU {
		reasons = append(reasons, "missing_upper")
	}
	if p.RequireLower && !hasL {
		reasons = append(reasons, "missing_lower")
	}
	if p.RequireDigit && !hasD {
		reasons = append(reasons, "missing_digit")
	}
	if p.RequireSymbol && !hasS {
		reasons = append(reasons, "missing_symbol")
	}
	if _, ok := p.blacklist[strings.ToLower(strings.TrimSpace(s))]; ok {
		reasons = append(reasons, "blacklisted")
	}
	return reasons
}
