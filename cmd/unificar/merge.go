package main

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/comex-report/unificador/internal/form"
	"github.com/comex-report/unificador/internal/importer"
)

const defaultExportDir = "./datos_importaciones"

func newMergeCmd(v *viper.Viper, logger *zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge [FILE...]",
		Short: "Unify exports locally without a server",
		Long: `With FILE arguments every file must be valid, like an upload.
Without arguments every detalle_*.xlsx in --dir is merged; files that
cannot be read or carry an unknown country code are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := importer.LoadRules(v.GetString("rules"))
			if err != nil {
				return err
			}
			p := importer.NewProcessor(nil, rules)

			var result *importer.Result
			if len(args) > 0 {
				sources := make([]importer.Source, len(args))
				for i, a := range args {
					sources[i] = importer.FileSource(a)
				}
				result, err = p.Unify(sources)
			} else {
				result, err = mergeDir(p, v.GetString("dir"), *logger)
			}
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := importer.WriteWorkbook(&buf, result.Records); err != nil {
				return fmt.Errorf("writing workbook: %w", err)
			}

			out := v.GetString("out")
			d := form.DirDownloader{Dir: filepath.Dir(out)}
			if err := d.Download(filepath.Base(out), &buf); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Archivo unificado generado: %s (%d filas)\n", out, len(result.Records))
			for country, n := range result.Countries {
				logger.Info().Str("country", country).Int("rows", n).Msg("merged")
			}
			return nil
		},
	}

	cmd.Flags().String("dir", defaultExportDir, "Folder scanned for detalle_*.xlsx when no files are given")
	cmd.Flags().String("out", importer.OutputFilename, "Output workbook path")
	cmd.Flags().String("rules", "", "YAML file replacing the built-in country rules")
	return cmd
}

// mergeDir merges every export of dir, skipping the ones that fail.
func mergeDir(p *importer.Processor, dir string, logger zerolog.Logger) (*importer.Result, error) {
	files, err := importer.ListExports(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var batches []*importer.Batch
	for _, f := range files {
		batch, err := processFile(p, f)
		if err != nil {
			var inErr *importer.InputError
			if errors.As(err, &inErr) {
				logger.Warn().Str("file", f.Name()).Msg(inErr.Msg)
			} else {
				logger.Warn().Err(err).Str("file", f.Name()).Msg("skipping unreadable file")
			}
			continue
		}
		logger.Debug().Str("file", f.Name()).Str("country", batch.Country).Int("rows", len(batch.Records)).Msg("processed")
		batches = append(batches, batch)
	}

	if len(batches) == 0 {
		return nil, importer.ErrNoData
	}
	return importer.Merge(batches), nil
}

func processFile(p *importer.Processor, f importer.FileSource) (*importer.Batch, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return p.ProcessFile(f.Name(), rc)
}
