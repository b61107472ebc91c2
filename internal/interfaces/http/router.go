package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/efinanceira-signer/internal/application/auth"
	"github.com/jhoicas/efinanceira-signer/internal/application/signing"
	"github.com/jhoicas/efinanceira-signer/pkg/jwt"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	SigningUC *signing.SigningUseCase
	AuthUC    *auth.AuthUseCase
	JWTSecret string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Auth (público)
	authHandler := NewAuthHandler(deps.AuthUC)
	api.Post("/auth/token", authHandler.Token)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))
	h := NewSigningHandler(deps.SigningUC)

	// Firma: solo rol signer
	signerOnly := RequireRole(jwt.RoleSigner)
	protected.Post("/sign", signerOnly, h.Sign)
	protected.Post("/lots/sign", signerOnly, h.SignLot)
	protected.Get("/certificate", signerOnly, h.Certificate)

	// Lectura: signer o auditor
	readers := RequireRole(jwt.RoleSigner, jwt.RoleAuditor)
	protected.Post("/verify", readers, h.Verify)
	protected.Post("/detect", readers, h.Detect)
	protected.Get("/receipts/:session_id", readers, h.Receipts)
	protected.Get("/certificates/:thumbprint/receipts", readers, h.ReceiptsByCertificate)
}
