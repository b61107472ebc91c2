package main

import (
	"github.com/spf13/cobra"

	"github.com/jhoicas/efinanceira-signer/internal/application/dto"
)

var (
	signTarget string
	signOutput string
)

var signCmd = &cobra.Command{
	Use:   "sign <evento.xml|->",
	Short: "Firma un evento individual",
	Long: `Firma el evento con XMLDSig enveloped (RSA-SHA256, con respaldo a RSA-SHA1 si SHA-256
no está disponible). Sin --target se detecta el tipo de evento.

Ejemplos:
  efsign sign evtCadDeclarante.xml -o firmado.xml --cert declarante.p12
  cat evento.xml | efsign sign - --target evtMovOpFin > firmado.xml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[0])
		if err != nil {
			return err
		}
		uc, err := newUseCase()
		if err != nil {
			return err
		}
		resp, err := uc.SignDocument(cmdContext(cmd), dto.SignDocumentRequest{XML: string(data), Target: signTarget})
		if err != nil {
			return err
		}
		for _, s := range resp.Signatures {
			log.Info().Str("element", s.Element).Str("reference_id", s.ReferenceID).Str("algorithm", s.Algorithm).Msg("firmado")
		}
		return writeOutput(signOutput, []byte(resp.XML))
	},
}

var signLotCmd = &cobra.Command{
	Use:   "sign-lot <lote.xml|->",
	Short: "Firma todos los eventos de un lote",
	Long: `Firma cada <evento> del lote. Si un evento falla no se escribe nada y el error
indica el número de evento.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[0])
		if err != nil {
			return err
		}
		uc, err := newUseCase()
		if err != nil {
			return err
		}
		resp, err := uc.SignLot(cmdContext(cmd), dto.SignLotRequest{XML: string(data)})
		if err != nil {
			return err
		}
		log.Info().Int("events", len(resp.Signatures)).Str("thumbprint", resp.Certificate.Thumbprint).Msg("lote firmado")
		return writeOutput(signOutput, []byte(resp.XML))
	},
}

func init() {
	signCmd.Flags().StringVarP(&signTarget, "target", "t", "", "elemento a firmar (vacío = autodetección)")
	for _, c := range []*cobra.Command{signCmd, signLotCmd} {
		c.Flags().StringVarP(&signOutput, "out", "o", "", "archivo de salida (por defecto stdout)")
	}
}
