package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/QTest-hq/apimap/internal/config"
	"github.com/QTest-hq/apimap/internal/render"
	"github.com/QTest-hq/apimap/pkg/model"
)

func renderCmd() *cobra.Command {
	var (
		target     targetFlags
		format     string
		lang       string
		baseURL    string
		title      string
		apiVersion string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the extracted API as a document or client code",
		Long: `Renders the endpoints of a codebase in one of the supported formats.

Formats:
  - openapi:      OpenAPI 3.0 document (JSON)
  - openapi-yaml: OpenAPI 3.0 document (YAML)
  - postman:      Postman collection v2.1
  - curl:         one cURL command per endpoint
  - snippet:      client code, pick the language with --lang
  - mock:         sample request and response payloads

Example:
  apimap render --format openapi-yaml -o openapi.yaml
  apimap render --format snippet --lang python --base-url https://api.example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			if !isFormat(format) {
				return fmt.Errorf("unsupported format %q\nAvailable: %s", format, strings.Join(render.Formats(), ", "))
			}

			res, err := target.extract(cmd.Context())
			if err != nil {
				return err
			}

			opts := render.Options{Title: title, Version: apiVersion, BaseURL: baseURL}
			if format == render.FormatOpenAPI || format == render.FormatOpenAPIYAML {
				if err := render.ValidateOpenAPI(cmd.Context(), render.OpenAPI(res.Endpoints, opts)); err != nil {
					log.Warn().Err(err).Msg("generated OpenAPI document does not validate")
				}
			}

			data, err := render.Artifact(format, res.Endpoints, opts, lang)
			if err != nil {
				return err
			}
			if err := writeOutput(cmd, outputFile, data); err != nil {
				return err
			}
			if outputFile != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s Rendered %d endpoints as %s to %s\n",
					color.GreenString("✓"), len(res.Endpoints), format, outputFile)
			}
			return nil
		},
	}

	target.register(cmd)
	cmd.Flags().StringVar(&format, "format", render.FormatOpenAPI, "Output format: "+strings.Join(render.Formats(), ", "))
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Snippet language or renderer name ("+strings.Join(render.NewSnippetRegistry().List(), ", ")+")")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Server URL used in requests (default http://localhost:3000)")
	cmd.Flags().StringVar(&title, "title", "", "Document title")
	cmd.Flags().StringVar(&apiVersion, "api-version", "", "Document version")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default stdout)")

	return cmd
}

func mockCmd() *cobra.Command {
	var (
		target     targetFlags
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Generate sample request and response payloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := target.extract(cmd.Context())
			if err != nil {
				return err
			}
			data, err := render.MockJSON(res.Endpoints)
			if err != nil {
				return err
			}
			return writeOutput(cmd, outputFile, append(data, '\n'))
		},
	}

	target.register(cmd)
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default stdout)")

	return cmd
}

func initCmd() *cobra.Command {
	var (
		dir       string
		framework string
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default .apimap.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(dir)
			if err != nil || !info.IsDir() {
				return fmt.Errorf("not a directory: %s", dir)
			}
			if !force {
				for _, name := range []string{".apimap.yaml", ".apimap.yml"} {
					if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
						return fmt.Errorf("%s already exists, use --force to overwrite", name)
					}
				}
			}

			if framework != "" {
				if _, ok := model.ParseFramework(framework); !ok {
					return fmt.Errorf("unknown framework %q", framework)
				}
			}

			cfg := config.DefaultProjectConfig()
			cfg.Framework = framework
			if err := config.SaveProjectConfig(dir, cfg); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created .apimap.yaml\n", color.GreenString("✓"))
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Project directory")
	cmd.Flags().StringVarP(&framework, "framework", "f", "", "Pin the framework instead of detecting it")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")

	return cmd
}

func isFormat(format string) bool {
	for _, f := range render.Formats() {
		if f == format {
			return true
		}
	}
	return false
}
