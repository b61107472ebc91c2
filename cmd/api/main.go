package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/efinanceira-signer/internal/application/auth"
	"github.com/jhoicas/efinanceira-signer/internal/application/signing"
	"github.com/jhoicas/efinanceira-signer/internal/domain/repository"
	"github.com/jhoicas/efinanceira-signer/internal/infrastructure/efinanceira/credential"
	"github.com/jhoicas/efinanceira-signer/internal/infrastructure/efinanceira/signer"
	"github.com/jhoicas/efinanceira-signer/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/efinanceira-signer/internal/interfaces/http"
	"github.com/jhoicas/efinanceira-signer/pkg/config"
	"github.com/jhoicas/efinanceira-signer/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("cert_source", cfg.Signer.CertSource).
		Msg("iniciando aplicación")

	source, err := credential.NewSource(cfg.Signer)
	if err != nil {
		log.Fatal().Err(err).Msg("fuente de credencial")
	}
	signerSvc := signer.NewService(
		signer.WithLogger(log.Zerolog()),
		signer.WithStrictDetection(cfg.Signer.StrictDetection),
	)

	// Recibos: solo con base configurada. Sin base la firma funciona igual.
	var (
		txRunner signing.ReceiptTxRunner
		receipts repository.SignatureReceiptRepository
	)
	ctx := context.Background()
	if cfg.DB.Enabled() {
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("migraciones")
		}
		txRunner = postgres.NewTxRunner(pool)
		receipts = postgres.NewSignatureReceiptRepository(pool)
	} else {
		log.Warn().Msg("sin base de datos: no se guardan recibos de firma")
	}

	signingUC := signing.NewSigningUseCase(
		source, signerSvc, signer.Verifier{}, txRunner, receipts,
		cfg.Signer.StrictDetection, log.Zerolog(),
	)
	authUC := auth.NewAuthUseCase(
		auth.Client{
			ID:         cfg.Auth.ClientID,
			SecretHash: cfg.Auth.ClientSecretHash,
			Role:       cfg.Auth.Role,
			Declarant:  cfg.Auth.Declarant,
		},
		auth.JWTConfig{
			Secret:     cfg.JWT.Secret,
			ExpMinutes: cfg.JWT.Expiration,
			Issuer:     cfg.JWT.Issuer,
		},
	)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    cfg.HTTP.MaxBodyBytes,
		ReadTimeout:  time.Second * 30,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "e-Financeira Signer API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name, "receipts": cfg.DB.Enabled()})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		SigningUC: signingUC,
		AuthUC:    authUC,
		JWTSecret: cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
