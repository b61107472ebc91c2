package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Operaciones sobre la credencial de firma",
}

var certInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Muestra los datos públicos del certificado configurado",
	Long: `Carga la credencial (archivo, PEM o token) y muestra sujeto, emisor, huella,
vigencia y usos de llave en JSON. Nunca muestra la llave privada.

Ejemplo:
  efsign cert inspect --cert declarante.p12`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		uc, err := newUseCase()
		if err != nil {
			return err
		}
		resp, err := uc.InspectCredential(cmdContext(cmd))
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	certCmd.AddCommand(certInspectCmd)
}
