package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var (
	t0     = time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)
	secret = []byte("0123456789abcdef0123456789abcdef")
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newHSManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessTTL:     8 * time.Hour,
		RefreshTTL:    30 * 24 * time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    secret,
		Issuer:        "accountguard",
		Audience:      "web",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestCreateAndParseRoundTrip(t *testing.T) {
	m := newHSManager(t)

	token, exp, err := m.Create(KindAccess, "acct-1", t0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !exp.Equal(t0.Add(8 * time.Hour)) {
		t.Fatalf("unexpected expiry %v", exp)
	}

	claims, err := m.Parse(KindAccess, token, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "acct-1" || claims.Kind != KindAccess || claims.ID == "" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	m := newHSManager(t)

	access, _, _ := m.Create(KindAccess, "acct-1", t0)
	if _, err := m.Parse(KindAccess, access, t0.Add(8*time.Hour+time.Second)); !errors.Is(err, gjwt.ErrTokenExpired) {
		t.Fatalf("expected expired access token, got %v", err)
	}

	refresh, _, _ := m.Create(KindRefresh, "acct-1", t0)
	if _, err := m.Parse(KindRefresh, refresh, t0.Add(29*24*time.Hour)); err != nil {
		t.Fatalf("refresh token should be valid after 29 days: %v", err)
	}
	if _, err := m.Parse(KindRefresh, refresh, t0.Add(31*24*time.Hour)); err == nil {
		t.Fatal("expected refresh token to expire after 30 days")
	}
}

func TestParseRejectsWrongKind(t *testing.T) {
	m := newHSManager(t)

	refresh, _, _ := m.Create(KindRefresh, "acct-1", t0)
	if _, err := m.Parse(KindAccess, refresh, t0); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("expected ErrWrongKind, got %v", err)
	}
}

func TestParseRejectsTampering(t *testing.T) {
	m := newHSManager(t)

	token, _, _ := m.Create(KindAccess, "acct-1", t0)
	parts := strings.Split(token, ".")
	payload := []byte(parts[1])
	if payload[len(payload)-2] == 'A' {
		payload[len(payload)-2] = 'B'
	} else {
		payload[len(payload)-2] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	if _, err := m.Parse(KindAccess, tampered, t0); err == nil {
		t.Fatal("expected tampered token to be rejected")
	}
	if _, err := m.Parse(KindAccess, "not-a-token", t0); err == nil {
		t.Fatal("expected malformed token to be rejected")
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{Kind: KindAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "acct-1",
		IssuedAt:  gjwt.NewNumericDate(t0),
		ExpiresAt: gjwt.NewNumericDate(t0.Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.Parse(KindAccess, token, t0); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseIssuerAndAudience(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     priv.Public().(ed25519.PublicKey),
		Issuer:        "accountguard",
		Audience:      "api",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	access, _, err := m.Create(KindAccess, "acct-1", t0)
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := m.Parse(KindAccess, access, t0); err != nil {
		t.Fatalf("expected valid token to parse: %v", err)
	}

	wrongIssuer := Claims{Kind: KindAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "acct-1",
		Issuer:    "other",
		Audience:  gjwt.ClaimStrings{"api"},
		ExpiresAt: gjwt.NewNumericDate(t0.Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(t0),
	}}
	badIssuer, _ := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, wrongIssuer).SignedString(priv)
	if _, err := m.Parse(KindAccess, badIssuer, t0); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}

	wrongAudience := Claims{Kind: KindAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "acct-1",
		Issuer:    "accountguard",
		Audience:  gjwt.ClaimStrings{"other-api"},
		ExpiresAt: gjwt.NewNumericDate(t0.Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(t0),
	}}
	badAudience, _ := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, wrongAudience).SignedString(priv)
	if _, err := m.Parse(KindAccess, badAudience, t0); err == nil {
		t.Fatal("expected wrong audience to fail")
	}
}

func TestVerifyKeysRotation(t *testing.T) {
	oldKey := []byte("old-secret-old-secret-old-secret")
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    secret,
		KeyID:         "k2",
		VerifyKeys:    map[string][]byte{"k1": oldKey, "k2": secret},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	legacy := gjwt.NewWithClaims(gjwt.SigningMethodHS256, Claims{Kind: KindAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "acct-1",
		IssuedAt:  gjwt.NewNumericDate(t0),
		ExpiresAt: gjwt.NewNumericDate(t0.Add(time.Minute)),
	}})
	legacy.Header["kid"] = "k1"
	signed, _ := legacy.SignedString(oldKey)
	if _, err := m.Parse(KindAccess, signed, t0); err != nil {
		t.Fatalf("token signed with rotated-out key should verify: %v", err)
	}

	legacy.Header["kid"] = "k9"
	unknown, _ := legacy.SignedString(oldKey)
	if _, err := m.Parse(KindAccess, unknown, t0); err == nil {
		t.Fatal("expected unknown kid to fail")
	}
}

func TestNewManagerValidation(t *testing.T) {
	cases := []Config{
		{AccessTTL: 0, RefreshTTL: time.Hour, PrivateKey: secret},
		{AccessTTL: time.Hour, RefreshTTL: time.Hour, PrivateKey: []byte("short")},
		{AccessTTL: time.Hour, RefreshTTL: time.Hour, PrivateKey: secret, Leeway: time.Hour},
		{AccessTTL: time.Hour, RefreshTTL: time.Hour, SigningMethod: "rs512", PrivateKey: secret},
		{AccessTTL: time.Hour, RefreshTTL: time.Hour, SigningMethod: MethodEd25519},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected config to be rejected", i)
		}
	}
}

func TestCreateRequiresSubject(t *testing.T) {
	m := newHSManager(t)
	if _, _, err := m.Create(KindAccess, "", t0); !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("expected ErrMissingSubject, got %v", err)
	}
}
