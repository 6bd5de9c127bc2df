package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/comex-report/unificador/internal/client"
	"github.com/comex-report/unificador/internal/form"
)

func newUploadCmd(v *viper.Viper, logger *zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload [FILE...]",
		Short: "Send exports to a server and download the unified workbook",
		Long: `Posts the given .xlsx/.csv files to <server>/unificar in a single request
and saves the response as importaciones_unificadas.xlsx in --out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.New(client.Options{
				BaseURL: v.GetString("server"),
				Retries: v.GetInt("retries"),
				Timeout: v.GetDuration("timeout"),
				Logger:  *logger,
			})
			if err != nil {
				return err
			}

			f := form.New(clientUploader{c}, form.DirDownloader{Dir: v.GetString("out")})
			view := &terminalView{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
			f.Subscribe(view.Render)

			f.OnFilesSelected(form.FromPaths(args))
			if err := f.OnSubmit(cmd.Context()); err != nil {
				return fmt.Errorf("%w: %v", errShown, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Descargado: %s\n",
				filepath.Join(v.GetString("out"), form.DownloadName))
			return nil
		},
	}

	cmd.Flags().String("server", "http://localhost:8000", "Base URL of the unify server")
	cmd.Flags().String("out", ".", "Directory the workbook is saved to")
	cmd.Flags().Int("retries", 0, "Retries on connection errors and gateway failures")
	cmd.Flags().Duration("timeout", 0, "Request timeout (0 waits indefinitely)")
	return cmd
}

// clientUploader sends the form's files through the HTTP client.
type clientUploader struct {
	c *client.Client
}

func (u clientUploader) Upload(ctx context.Context, files []form.File) (*form.Response, error) {
	cf := make([]client.File, len(files))
	for i, f := range files {
		cf[i] = f
	}
	res, err := u.c.Unify(ctx, cf)
	if err != nil {
		return nil, err
	}
	return &form.Response{Payload: res.Payload}, nil
}

// terminalView prints the form's state transitions.
type terminalView struct {
	out    io.Writer
	errOut io.Writer
	prev   form.View
}

func (t *terminalView) Render(s form.State) {
	v := s.View()
	if v.SubmitLabel != t.prev.SubmitLabel && v.SubmitDisabled {
		fmt.Fprintf(t.out, "%s (%d archivos)\n", v.SubmitLabel, len(v.FileNames))
	}
	if v.Error != "" && v.Error != t.prev.Error {
		fmt.Fprintf(t.errOut, "Error: %s\n", v.Error)
	}
	t.prev = v
}
