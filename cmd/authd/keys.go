package main

import (
	"fmt"

	"github.com/spf13/cobra"

	jwtx "github.com/dropDatabas3/tenantauth/internal/jwt"
)

func newKeysCmd() *cobra.Command {
	var out string
	gen := &cobra.Command{
		Use:   "generate",
		Short: "Genera un par Ed25519 para firmar tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := jwtx.GenerateEd25519()
			if err != nil {
				return err
			}
			if err := ks.WritePEM(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "kid=%s escrito en %s\n", ks.KID, out)
			return nil
		},
	}
	gen.Flags().StringVarP(&out, "out", "o", "data/jwt_ed25519.pem", "archivo PEM de salida")

	cmd := &cobra.Command{Use: "keys", Short: "Claves de firma"}
	cmd.AddCommand(gen)
	return cmd
}
