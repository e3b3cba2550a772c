package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/qcsr/internal/decoder"
	"github.com/dgallion1/qcsr/internal/extract"
	"github.com/dgallion1/qcsr/internal/results"
	"github.com/dgallion1/qcsr/internal/summary"
	"github.com/dgallion1/qcsr/internal/wadconfig"
)

func extractCmd() *cobra.Command {
	var (
		format     string
		rootTitles []string
	)
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Print the categorized results of a structured report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := decoder.Read(args[0])
			if err != nil {
				return err
			}
			res, err := extract.New(rootTitles...).Extract(doc)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			case "markdown":
				_, err := out.Write(summary.Markdown(summary.FromDocument(doc, args[0], res)))
				return err
			case "html":
				page, err := summary.HTML(summary.FromDocument(doc, args[0], res))
				if err != nil {
					return err
				}
				_, err = out.Write(page)
				return err
			}
			return fmt.Errorf("unknown format %q (json, markdown, html)", format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json, markdown or html")
	cmd.Flags().StringArrayVar(&rootTitles, "root-title", nil, "wrapper container title to strip (repeatable)")
	return cmd
}

func paramsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "params <file>",
		Short: "List the parameters stored in a structured report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := decoder.Read(args[0])
			if err != nil {
				return err
			}
			params, err := extract.ListParams(doc, newLogger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(params)
		},
	}
}

func runCmd() *cobra.Command {
	var configPath, dataPath, resultsPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured module actions on a report and write the results file",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd.ErrOrStderr())

			cfg, err := wadconfig.Load(configPath)
			if err != nil {
				return err
			}
			doc, err := decoder.Read(dataPath)
			if err != nil {
				return err
			}

			c := results.NewCollector()
			if err := cfg.Run(doc, extract.New(), c); err != nil {
				return err
			}
			if err := c.WriteFile(resultsPath); err != nil {
				return err
			}
			logger.Info().
				Strs("actions", cfg.Names()).
				Int("results", c.Len()).
				Str("output", resultsPath).
				Msg("results written")
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "module action config (JSON)")
	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "structured report file")
	cmd.Flags().StringVarP(&resultsPath, "results", "r", "results.json", "results output file")
	cmd.MarkFlagRequired("config")
	cmd.MarkFlagRequired("data")
	return cmd
}
