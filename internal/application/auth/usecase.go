package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/efinanceira-signer/internal/application/dto"
	"github.com/jhoicas/efinanceira-signer/internal/domain"
	"github.com/jhoicas/efinanceira-signer/pkg/jwt"
)

// JWTConfig configuración para generación de tokens.
type JWTConfig struct {
	Secret     string
	ExpMinutes int
	Issuer     string
}

// Client cliente autorizado (client credentials). SecretHash es bcrypt.
type Client struct {
	ID         string
	SecretHash string
	Role       string
	Declarant  string
}

// AuthUseCase emite tokens para clientes configurados.
type AuthUseCase struct {
	client Client
	jwtCfg JWTConfig
}

// NewAuthUseCase construye el caso de uso de auth.
func NewAuthUseCase(client Client, jwtCfg JWTConfig) *AuthUseCase {
	return &AuthUseCase{client: client, jwtCfg: jwtCfg}
}

// IssueToken valida client_id/client_secret contra el hash bcrypt y genera el JWT.
// Sin cliente configurado nadie puede obtener token.
func (uc *AuthUseCase) IssueToken(in dto.TokenRequest) (*dto.TokenResponse, error) {
	if uc.client.ID == "" || uc.client.SecretHash == "" {
		return nil, domain.ErrForbidden
	}
	if subtle.ConstantTimeCompare([]byte(in.ClientID), []byte(uc.client.ID)) != 1 {
		return nil, domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(uc.client.SecretHash), []byte(in.ClientSecret)); err != nil {
		return nil, domain.ErrUnauthorized
	}
	token, err := jwt.Generate(uc.jwtCfg.Secret, uc.client.ID, uc.client.Declarant, uc.client.Role, uc.jwtCfg.Issuer, uc.jwtCfg.ExpMinutes)
	if err != nil {
		return nil, err
	}
	return &dto.TokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: uc.jwtCfg.ExpMinutes * 60,
		Role:      uc.client.Role,
	}, nil
}
