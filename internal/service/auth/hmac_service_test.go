package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/phrazzld/throttleq/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret  = "test-secret-that-is-long-enough-for-testing"
	wrongSecret = "wrong-secret-that-is-long-enough-for-testing"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewJWTService(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		svc, err := NewJWTService(config.AuthConfig{
			JWTSecret:     testSecret,
			Issuer:        "throttleq",
			TokenLifetime: time.Hour,
		})
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("short secret", func(t *testing.T) {
		_, err := NewJWTService(config.AuthConfig{JWTSecret: "short", Issuer: "x", TokenLifetime: time.Hour})
		assert.ErrorIs(t, err, ErrWeakSecret)
	})

	t.Run("zero lifetime", func(t *testing.T) {
		_, err := NewJWTService(config.AuthConfig{JWTSecret: testSecret, Issuer: "x"})
		assert.Error(t, err)
	})
}

func TestGenerateToken(t *testing.T) {
	fixedTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc, err := newHMACService(testSecret, "throttleq", time.Hour, fixedClock(fixedTime))
	require.NoError(t, err)

	token, err := svc.GenerateToken(context.Background(), "ops")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, "throttleq", claims.Issuer)
	assert.Equal(t, fixedTime.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, fixedTime.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.NotEmpty(t, claims.ID)

	_, err = svc.GenerateToken(context.Background(), "")
	assert.Error(t, err)
}

func TestValidateToken(t *testing.T) {
	fixedTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	lifetime := time.Hour

	mustService := func(secret, issuer string, now time.Time) *hmacJWTService {
		svc, err := newHMACService(secret, issuer, lifetime, fixedClock(now))
		require.NoError(t, err)
		return svc
	}
	mustToken := func(svc *hmacJWTService) string {
		token, err := svc.GenerateToken(context.Background(), "ops")
		require.NoError(t, err)
		return token
	}

	tests := []struct {
		name    string
		setup   func() (*hmacJWTService, string)
		wantErr error
	}{
		{
			name: "valid token",
			setup: func() (*hmacJWTService, string) {
				svc := mustService(testSecret, "throttleq", fixedTime)
				return svc, mustToken(svc)
			},
		},
		{
			name: "expired token",
			setup: func() (*hmacJWTService, string) {
				token := mustToken(mustService(testSecret, "throttleq", fixedTime))
				later := mustService(testSecret, "throttleq", fixedTime.Add(lifetime+5*time.Minute))
				return later, token
			},
			wantErr: ErrExpiredToken,
		},
		{
			name: "within clock skew",
			setup: func() (*hmacJWTService, string) {
				token := mustToken(mustService(testSecret, "throttleq", fixedTime))
				later := mustService(testSecret, "throttleq", fixedTime.Add(lifetime+time.Minute))
				return later, token
			},
		},
		{
			name: "not yet valid",
			setup: func() (*hmacJWTService, string) {
				token := mustToken(mustService(testSecret, "throttleq", fixedTime.Add(time.Hour)))
				return mustService(testSecret, "throttleq", fixedTime), token
			},
			wantErr: ErrTokenNotYetValid,
		},
		{
			name: "wrong secret",
			setup: func() (*hmacJWTService, string) {
				token := mustToken(mustService(testSecret, "throttleq", fixedTime))
				return mustService(wrongSecret, "throttleq", fixedTime), token
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "wrong issuer",
			setup: func() (*hmacJWTService, string) {
				token := mustToken(mustService(testSecret, "someone-else", fixedTime))
				return mustService(testSecret, "throttleq", fixedTime), token
			},
			wantErr: ErrWrongIssuer,
		},
		{
			name: "malformed token",
			setup: func() (*hmacJWTService, string) {
				return mustService(testSecret, "throttleq", fixedTime), "not.a.jwt"
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "empty token",
			setup: func() (*hmacJWTService, string) {
				return mustService(testSecret, "throttleq", fixedTime), ""
			},
			wantErr: ErrMissingToken,
		},
		{
			name: "unsigned token",
			setup: func() (*hmacJWTService, string) {
				claims := jwt.RegisteredClaims{
					Subject:   "ops",
					Issuer:    "throttleq",
					ExpiresAt: jwt.NewNumericDate(fixedTime.Add(time.Hour)),
				}
				token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
				require.NoError(t, err)
				return mustService(testSecret, "throttleq", fixedTime), token
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "missing expiry",
			setup: func() (*hmacJWTService, string) {
				claims := jwt.RegisteredClaims{Subject: "ops", Issuer: "throttleq"}
				token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
				require.NoError(t, err)
				return mustService(testSecret, "throttleq", fixedTime), token
			},
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, token := tt.setup()
			claims, err := svc.ValidateToken(context.Background(), token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ops", claims.Subject)
		})
	}
}
