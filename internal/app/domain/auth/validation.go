package auth

import (
	"regexp"
	"unicode/utf8"
)

// Form messages shown next to fields.
const (
	MsgRequired         = "Campo obligatorio"
	MsgInvalid          = "Valor incorrecto"
	MsgPasswordMismatch = "Las contraseñas no coinciden"
	MsgBadCredentials   = "Usuario o contraseña incorrecta"
	MsgAlreadyExists    = "El nombre de usuario o el email ya están registrados"
	MsgUnreachable      = "No se pudo conectar con el servidor"
	MsgRegistered       = "Registro exitoso, ya puedes iniciar sesión"
)

var (
	loginUserRe    = regexp.MustCompile(`^[a-zA-Z0-9]{4,}$`)
	loginPassRe    = regexp.MustCompile(`^[A-Za-z\d!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]{6}$`)
	registerUserRe = regexp.MustCompile(`^[a-zA-Z0-9]{4,8}$`)
	emailRe        = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// passwordLength is the exact length a new password must have.
const passwordLength = 6

type LoginRequest struct {
	Usuario  string `form:"usuario"`
	Password string `form:"password"`
}

type RegisterRequest struct {
	Usuario   string `form:"usuario"`
	Email     string `form:"email"`
	Password  string `form:"password"`
	Password2 string `form:"password2"`
}

// FieldErrors maps a form field name to its message. Empty means valid.
type FieldErrors map[string]string

func (e FieldErrors) Valid() bool { return len(e) == 0 }

// ValidateLogin applies the sign-in form rules.
func ValidateLogin(r LoginRequest) FieldErrors {
	errs := FieldErrors{}
	switch {
	case r.Usuario == "":
		errs["usuario"] = MsgRequired
	case !loginUserRe.MatchString(r.Usuario):
		errs["usuario"] = MsgInvalid
	}
	switch {
	case r.Password == "":
		errs["password"] = MsgRequired
	case !loginPassRe.MatchString(r.Password):
		errs["password"] = MsgInvalid
	}
	return errs
}

// ValidateRegistration applies the sign-up form rules: a 4 to 8 character
// alphanumeric user, an email, and a password of exactly six characters
// mixing upper case, lower case, a digit and a symbol.
func ValidateRegistration(r RegisterRequest) FieldErrors {
	errs := FieldErrors{}
	switch {
	case r.Usuario == "":
		errs["usuario"] = MsgRequired
	case !registerUserRe.MatchString(r.Usuario):
		errs["usuario"] = MsgInvalid
	}
	switch {
	case r.Email == "":
		errs["email"] = MsgRequired
	case !emailRe.MatchString(r.Email):
		errs["email"] = MsgInvalid
	}
	switch {
	case r.Password == "":
		errs["password"] = MsgRequired
	case !strongPassword(r.Password):
		errs["password"] = MsgInvalid
	}
	switch {
	case r.Password2 == "":
		errs["password2"] = MsgRequired
	case r.Password2 != r.Password:
		errs["password2"] = MsgPasswordMismatch
	}
	return errs
}

func strongPassword(p string) bool {
	if utf8.RuneCountInString(p) != passwordLength {
		return false
	}
	var upper, lower, digit, symbol bool
	for _, r := range p {
		switch {
		case r == '\n' || r == '\r':
			return false
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}
