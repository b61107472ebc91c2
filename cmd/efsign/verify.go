package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jhoicas/efinanceira-signer/internal/application/dto"
	"github.com/jhoicas/efinanceira-signer/internal/application/signing"
	"github.com/jhoicas/efinanceira-signer/internal/infrastructure/efinanceira/signer"
)

var errInvalidSignature = errors.New("firma inválida")

var verifyCmd = &cobra.Command{
	Use:   "verify <documento.xml|->",
	Short: "Verifica las firmas XMLDSig del documento",
	Long: `Verifica cada <Signature> del documento contra el certificado embebido.
Sale con código 1 si no hay firmas o si alguna es inválida.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[0])
		if err != nil {
			return err
		}
		// Verificar no necesita credencial.
		uc := signing.NewSigningUseCase(nil, nil, signer.Verifier{}, nil, nil, false, log.Zerolog())
		resp, err := uc.Verify(cmdContext(cmd), dto.VerifyRequest{XML: string(data)})
		if err != nil {
			return err
		}
		printChecks(resp)
		if !resp.Valid {
			return errInvalidSignature
		}
		return nil
	},
}

func printChecks(resp *dto.VerifyResponse) {
	if len(resp.Signatures) == 0 {
		fmt.Fprintln(os.Stdout, "sin firmas")
		return
	}
	for i, s := range resp.Signatures {
		status := "OK"
		if !s.Valid {
			status = "INVÁLIDA"
		}
		fmt.Fprintf(os.Stdout, "#%d %-8s %s %s %s\n", i+1, status, s.Element, s.ReferenceURI, s.SignatureMethod)
		if s.Subject != "" {
			fmt.Fprintf(os.Stdout, "   certificado: %s\n", s.Subject)
		}
		if s.Error != "" {
			fmt.Fprintf(os.Stdout, "   motivo: %s\n", s.Error)
		}
	}
}
