package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jhoicas/efinanceira-signer/internal/application/signing"
	"github.com/jhoicas/efinanceira-signer/internal/infrastructure/efinanceira/credential"
	"github.com/jhoicas/efinanceira-signer/internal/infrastructure/efinanceira/signer"
	"github.com/jhoicas/efinanceira-signer/pkg/config"
	"github.com/jhoicas/efinanceira-signer/pkg/logger"
)

// GlobalFlags flags comunes; si no se pasan se usa SIGNER_* del entorno.
type GlobalFlags struct {
	CertSource  string
	CertPath    string
	KeyPath     string
	Password    string
	StoreModule string
	StoreToken  string
	PIN         string
	Thumbprint  string
	Strict      bool
	LogLevel    string
	Output      string
}

var (
	globalFlags GlobalFlags
	cfg         *config.Config
	log         *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:           "efsign",
	Short:         "Firma XMLDSig de eventos e-Financeira",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		applyFlags(cmd, &cfg.Signer)
		if cmd.Flags().Changed("log-level") {
			cfg.App.LogLevel = globalFlags.LogLevel
		}
		// Logs a stderr: stdout queda para el XML firmado.
		log = logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Output: os.Stderr})
		return nil
	},
}

// Execute ejecuta el comando raíz.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&globalFlags.CertSource, "cert-source", "", "origen de la credencial: file|pem|store|candidates")
	pf.StringVar(&globalFlags.CertPath, "cert", "", "ruta al .p12/.pfx o al certificado PEM")
	pf.StringVar(&globalFlags.KeyPath, "key", "", "ruta a la llave PEM")
	pf.StringVar(&globalFlags.Password, "password", "", "contraseña del .p12 (si se omite se pide por terminal)")
	pf.StringVar(&globalFlags.StoreModule, "store-module", "", "librería PKCS#11 del token")
	pf.StringVar(&globalFlags.StoreToken, "store-token", "", "etiqueta del token PKCS#11")
	pf.StringVar(&globalFlags.PIN, "pin", "", "PIN del token (si se omite se pide por terminal)")
	pf.StringVar(&globalFlags.Thumbprint, "thumbprint", "", "huella SHA-1 del certificado en el token")
	pf.BoolVar(&globalFlags.Strict, "strict", false, "falla si el documento contiene más de un tipo de evento")
	pf.StringVar(&globalFlags.LogLevel, "log-level", "info", "nivel de log: trace|debug|info|warn|error")

	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(signLotCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(certCmd)
}

func applyFlags(cmd *cobra.Command, sc *config.SignerConfig) {
	flags := cmd.Flags()
	set := func(name string, dst *string, val string) {
		if flags.Changed(name) {
			*dst = val
		}
	}
	set("cert-source", &sc.CertSource, globalFlags.CertSource)
	set("cert", &sc.CertPath, globalFlags.CertPath)
	set("key", &sc.CertKeyPath, globalFlags.KeyPath)
	set("password", &sc.CertPassword, globalFlags.Password)
	set("store-module", &sc.StoreModule, globalFlags.StoreModule)
	set("store-token", &sc.StoreToken, globalFlags.StoreToken)
	set("pin", &sc.StorePIN, globalFlags.PIN)
	set("thumbprint", &sc.Thumbprint, globalFlags.Thumbprint)
	if flags.Changed("strict") {
		sc.StrictDetection = globalFlags.Strict
	}
}

// newUseCase arma el caso de uso sin base de datos (la CLI no guarda recibos).
func newUseCase() (*signing.SigningUseCase, error) {
	if err := promptSecrets(&cfg.Signer); err != nil {
		return nil, err
	}
	source, err := credential.NewSource(cfg.Signer)
	if err != nil {
		return nil, err
	}
	zl := log.Zerolog()
	svc := signer.NewService(signer.WithLogger(zl), signer.WithStrictDetection(cfg.Signer.StrictDetection))
	return signing.NewSigningUseCase(source, svc, signer.Verifier{}, nil, nil, cfg.Signer.StrictDetection, zl), nil
}

// promptSecrets pide contraseña o PIN sin eco cuando faltan y stdin es una terminal.
func promptSecrets(sc *config.SignerConfig) error {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return nil
	}
	var err error
	switch sc.CertSource {
	case config.CertSourceFile:
		if sc.CertPassword == "" {
			sc.CertPassword, err = promptPassword("Contraseña del certificado")
		}
	case config.CertSourceStore, config.CertSourceCandidates:
		if sc.StorePIN == "" {
			sc.StorePIN, err = promptPassword("PIN del token")
		}
	}
	return err
}

// promptPassword pide un secreto sin eco (a stderr, para no mezclar con la salida).
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt+": ")
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("leer secreto: %w", err)
	}
	return string(b), nil
}

// readInput lee un archivo o stdin ("-").
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// writeOutput escribe a archivo o a stdout si path es "" o "-".
func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
