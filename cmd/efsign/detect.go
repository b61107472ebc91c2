package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jhoicas/efinanceira-signer/internal/application/dto"
	"github.com/jhoicas/efinanceira-signer/internal/application/signing"
)

var detectCmd = &cobra.Command{
	Use:   "detect <evento.xml|->",
	Short: "Muestra el tipo de evento e-Financeira del documento",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[0])
		if err != nil {
			return err
		}
		uc := signing.NewSigningUseCase(nil, nil, nil, nil, nil, cfg.Signer.StrictDetection, log.Zerolog())
		resp, err := uc.Detect(cmdContext(cmd), dto.DetectRequest{XML: string(data)})
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, resp.EventTag)
		return nil
	},
}
