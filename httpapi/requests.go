package httpapi

import (
	"errors"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// resolveIdentifier falls back to the username, then the email key, when
// identifier is absent.
func (r *loginRequest) resolveIdentifier() {
	for _, candidate := range []string{r.Identifier, r.Username, r.Email} {
		if candidate != "" {
			r.Identifier = candidate
			return
		}
	}
}

func (r loginRequest) Validate() error {
	required := validation.Required.Error("Username/email and password are required")
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, required, validation.Length(1, 255)),
		validation.Field(&r.Password, required),
	)
}

type profileRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

func (r profileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(1, 80).Error("Username must be 1 to 80 characters")),
		validation.Field(&r.Email, is.Email.Error("Email is not valid")),
	)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (r changePasswordRequest) Validate() error {
	required := validation.Required.Error("Current password and new password are required")
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, required),
		validation.Field(&r.NewPassword, required),
	)
}

type resetRequest struct {
	Email string `json:"email"`
}

func (r resetRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email,
			validation.Required.Error("Email is required"),
			is.Email.Error("Email is not valid"),
		),
	)
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (r resetPasswordRequest) Validate() error {
	required := validation.Required.Error("Token and new password are required")
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required.Error("Email is required"), is.Email.Error("Email is not valid")),
		validation.Field(&r.Token, required),
		validation.Field(&r.NewPassword, required),
	)
}

// firstProblem picks one message from an ozzo error, by field name order.
func firstProblem(err error) string {
	var fields validation.Errors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return err.Error()
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if fields[k] != nil {
			return fields[k].Error()
		}
	}
	return err.Error()
}
