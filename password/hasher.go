package password

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyPassword is returned by Hash for an empty plaintext.
	ErrEmptyPassword = errors.New("password cannot be empty")
	// ErrPasswordTooLong is returned by Hash when the plaintext exceeds what
	// the algorithm can hash without truncation.
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
	// ErrMalformedHash marks a stored hash that cannot be parsed. It signals
	// storage corruption and must not be retried.
	ErrMalformedHash = errors.New("malformed password hash")
)

// Hasher is the credential store contract.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// Algorithm names accepted by New.
const (
	AlgorithmBcrypt = "bcrypt"
	AlgorithmArgon2 = "argon2id"
)

// Config selects the algorithm used for new hashes and its cost.
type Config struct {
	Algorithm  string       `yaml:"algorithm"`
	BcryptCost int          `yaml:"bcrypt_cost"`
	Argon2     Argon2Config `yaml:"argon2"`
}

// Multi hashes with one primary algorithm and verifies any supported stored
// format, so existing hashes keep working after the primary changes.
type Multi struct {
	primary string
	bcrypt  *Bcrypt
	argon2  *Argon2
}

// New builds a Multi from cfg.
func New(cfg Config) (*Multi, error) {
	b, err := NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	a, err := NewArgon2(cfg.Argon2)
	if err != nil {
		return nil, err
	}

	primary := strings.ToLower(strings.TrimSpace(cfg.Algorithm))
	switch primary {
	case "":
		primary = AlgorithmBcrypt
	case AlgorithmBcrypt, AlgorithmArgon2:
	default:
		return nil, fmt.Errorf("unsupported password algorithm %q", cfg.Algorithm)
	}

	return &Multi{primary: primary, bcrypt: b, argon2: a}, nil
}

func (m *Multi) Hash(password string) (string, error) {
	if m.primary == AlgorithmArgon2 {
		return m.argon2.Hash(password)
	}
	return m.bcrypt.Hash(password)
}

// Verify picks the algorithm from the stored hash prefix.
func (m *Multi) Verify(password, encodedHash string) (bool, error) {
	switch {
	case isBcryptHash(encodedHash):
		return m.bcrypt.Verify(password, encodedHash)
	case strings.HasPrefix(encodedHash, argon2Prefix):
		return m.argon2.Verify(password, encodedHash)
	default:
		return false, fmt.Errorf("%w: unrecognised hash format", ErrMalformedHash)
	}
}

// NeedsRehash reports whether encodedHash should be replaced by a hash from
// the primary algorithm at current cost.
func (m *Multi) NeedsRehash(encodedHash string) bool {
	if m.primary == AlgorithmArgon2 {
		return m.argon2.NeedsRehash(encodedHash)
	}
	if !isBcryptHash(encodedHash) {
		return true
	}
	return m.bcrypt.NeedsRehash(encodedHash)
}
