package password

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

const specialCharacters = `!@#$%^&*(),.?":{}|<>`

// Policy describes password strength requirements.
type Policy struct {
	MinLength      int  `yaml:"min_length"`
	RequireUpper   bool `yaml:"require_upper"`
	RequireLower   bool `yaml:"require_lower"`
	RequireDigit   bool `yaml:"require_digit"`
	RequireSpecial bool `yaml:"require_special"`
}

// DefaultPolicy requires 8 characters with upper, lower, digit and special.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:      8,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
	}
}

// PolicyError lists every requirement a password failed.
type PolicyError struct {
	Problems []string
}

func (e *PolicyError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// Check returns nil when password satisfies p, or a *PolicyError. Letter
// and digit classes are ASCII only.
func (p Policy) Check(password string) error {
	var problems []string

	if utf8.RuneCountInString(password) < p.MinLength {
		problems = append(problems, "Password must be at least "+strconv.Itoa(p.MinLength)+" characters long")
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		}
		if strings.ContainsRune(specialCharacters, r) {
			special = true
		}
	}

	if p.RequireUpper && !upper {
		problems = append(problems, "Password must contain at least one uppercase letter")
	}
	if p.RequireLower && !lower {
		problems = append(problems, "Password must contain at least one lowercase letter")
	}
	if p.RequireDigit && !digit {
		problems = append(problems, "Password must contain at least one number")
	}
	if p.RequireSpecial && !special {
		problems = append(problems, "Password must contain at least one special character")
	}

	if len(problems) == 0 {
		return nil
	}
	return &PolicyError{Problems: problems}
}
