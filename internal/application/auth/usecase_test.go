package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/efinanceira-signer/internal/application/dto"
	"github.com/jhoicas/efinanceira-signer/internal/domain"
	"github.com/jhoicas/efinanceira-signer/pkg/jwt"
)

const testSecret = "test-secret-key-for-unit-tests"

func newUseCase(t *testing.T) *AuthUseCase {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cr3t"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAuthUseCase(
		Client{ID: "erp-banco", SecretHash: string(hash), Role: jwt.RoleSigner, Declarant: "12345678000199"},
		JWTConfig{Secret: testSecret, ExpMinutes: 15, Issuer: "efinanceira-signer-test"},
	)
}

func TestIssueToken_CredencialesValidas(t *testing.T) {
	resp, err := newUseCase(t).IssueToken(dto.TokenRequest{ClientID: "erp-banco", ClientSecret: "s3cr3t"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, 900, resp.ExpiresIn)

	clientID, declarant, role, err := jwt.Parse(testSecret, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "erp-banco", clientID)
	assert.Equal(t, "12345678000199", declarant)
	assert.Equal(t, jwt.RoleSigner, role)
}

func TestIssueToken_SecretoIncorrecto(t *testing.T) {
	_, err := newUseCase(t).IssueToken(dto.TokenRequest{ClientID: "erp-banco", ClientSecret: "otro"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestIssueToken_ClienteDesconocido(t *testing.T) {
	_, err := newUseCase(t).IssueToken(dto.TokenRequest{ClientID: "intruso", ClientSecret: "s3cr3t"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestIssueToken_SinClienteConfigurado(t *testing.T) {
	uc := NewAuthUseCase(Client{}, JWTConfig{Secret: testSecret, ExpMinutes: 15})
	_, err := uc.IssueToken(dto.TokenRequest{ClientID: "", ClientSecret: ""})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
