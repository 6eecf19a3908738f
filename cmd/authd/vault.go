package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/tenantauth/internal/security/secretbox"
)

func newVaultCmd(g *globalFlags) *cobra.Command {
	enc := &cobra.Command{
		Use:   "encrypt [secreto]",
		Short: "Cifra un secreto con la master key configurada (lee stdin si no hay argumento)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			v, err := secretbox.NewVault(cfg.Vault.MasterKey, cfg.Vault.Salt, cfg.Vault.KDF)
			if err != nil {
				return err
			}

			plain := ""
			if len(args) == 1 {
				plain = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("vault: leer stdin: %w", err)
				}
				plain = strings.TrimRight(line, "\r\n")
			}

			blob, err := v.Encrypt(plain)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), blob)
			return nil
		},
	}

	cmd := &cobra.Command{Use: "vault", Short: "Utilidades del vault de secretos"}
	cmd.AddCommand(enc)
	return cmd
}
