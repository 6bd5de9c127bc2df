package main

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/comex-report/unificador/internal/logging"
)

// NewRootCmd creates the root command. Every flag can also be set through
// an UNIFICAR_* environment variable, e.g. UNIFICAR_SERVER.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("UNIFICAR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var logger zerolog.Logger

	rootCmd := &cobra.Command{
		Use:   "unificar",
		Short: "Reporte COMEX - unify customs import exports",
		Long: `Reporte COMEX ` + Version + ` - Built: ` + BuildTime + `
Unifies per-country "detalle_" import exports into a single workbook,
either through a running server (upload) or locally (merge).`,
		Version:       Version + " (" + BuildTime + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			level := v.GetString("log-level")
			if v.GetBool("verbose") {
				level = "debug"
			}
			logger = logging.Setup(logging.Options{
				Level:  level,
				Output: cmd.ErrOrStderr(),
			})
			return nil
		},
	}

	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output (same as --log-level debug)")

	rootCmd.AddCommand(newUploadCmd(v, &logger))
	rootCmd.AddCommand(newMergeCmd(v, &logger))
	return rootCmd
}
