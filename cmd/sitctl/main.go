// Command sitctl runs the extraction, candidate mining and SIT matching
// stages against local files without the server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	cfg "github.com/feichai0017/sit-pipeline/config"
	"github.com/feichai0017/sit-pipeline/internal/agent"
	"github.com/feichai0017/sit-pipeline/internal/agent/candidate"
	"github.com/feichai0017/sit-pipeline/internal/agent/phrase"
	rules "github.com/feichai0017/sit-pipeline/internal/agent/sit"
	"github.com/feichai0017/sit-pipeline/internal/models"
	"github.com/feichai0017/sit-pipeline/internal/repository"
	"github.com/feichai0017/sit-pipeline/internal/service/sit"
	"github.com/feichai0017/sit-pipeline/pkg/logger"
)

var (
	forceOCR     bool
	contentType  string
	sitFile      string
	upn          string
	organization string
	preserveCase bool
	logLevel     string

	log logger.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "sitctl",
	Short:         "Inspect documents with the SIT pipeline stages",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logger.NewLogger(
			logger.WithLevel(logLevel),
			logger.WithEncoding("console"),
			logger.WithOutputPaths([]string{"stderr"}),
			logger.WithErrorPaths(nil),
		)
		if err != nil {
			return err
		}
		log = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract text from a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := extract(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover <file>",
	Short: "Extract a document and propose SIT candidates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := extract(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		miner := candidate.NewMiner(log, agent.NewEntityExtractor(cfg.GetOllamaConfig()))
		items := miner.Discover(cmd.Context(), res.Text)
		if items == nil {
			items = []models.CandidateItem{}
		}
		return printJSON(cmd.OutOrStdout(), items)
	},
}

var matchCmd = &cobra.Command{
	Use:   "match <file|->",
	Short: "Match a YAML SIT definition against a document or stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := rules.LoadFile(sitFile)
		if err != nil {
			return err
		}

		var text string
		if args[0] == "-" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			text = string(data)
		} else {
			res, err := extract(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			text = res.Text
		}

		matches, err := rules.MatchBundle(text, bundle)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{
			"sit":         bundle.Sit.Name,
			"matches":     matches,
			"match_count": len(matches),
		})
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score <file>",
	Short: "Run the phrase scorer on a document",
	Long:  "Run the phrase scorer on a document. The Exchange access token is read from " + phrase.AccessTokenEnv + ".",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scorer := phrase.NewCommandScorer(log, cfg.GetPhraseScorerConfig())
		scores, err := scorer.ScorePhrases(cmd.Context(), phrase.Request{
			FilePath:          args[0],
			UserPrincipalName: upn,
			AccessToken:       os.Getenv(phrase.AccessTokenEnv),
			Organization:      organization,
			PreserveCase:      preserveCase,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), scores)
	},
}

var importCmd = &cobra.Command{
	Use:   "import <definition.yaml>",
	Short: "Store a YAML SIT definition as a draft in the configured database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		db, err := repository.NewGormDB(cfg.GetDatabaseConfig(), logLevel)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}

		b, err := sit.NewService(repository.NewSitRepository(db), log).Import(cmd.Context(), f)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{
			"sit_id":   b.Sit.ID,
			"name":     b.Sit.Name,
			"elements": len(b.Elements),
			"groups":   len(b.Groups),
			"filters":  len(b.Filters),
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")

	for _, c := range []*cobra.Command{extractCmd, discoverCmd, matchCmd} {
		c.Flags().BoolVar(&forceOCR, "force-ocr", false, "OCR even when a text layer exists")
		c.Flags().StringVar(&contentType, "content-type", "", "declared MIME type of the file")
	}
	matchCmd.Flags().StringVar(&sitFile, "sit", "", "YAML SIT definition")
	_ = matchCmd.MarkFlagRequired("sit")

	scoreCmd.Flags().StringVar(&upn, "upn", "", "user principal name")
	scoreCmd.Flags().StringVar(&organization, "organization", "", "Exchange organization")
	scoreCmd.Flags().BoolVar(&preserveCase, "preserve-case", false, "keep phrase casing")

	rootCmd.AddCommand(extractCmd, discoverCmd, matchCmd, scoreCmd, importCmd)
}

func extract(ctx context.Context, path string) (models.ExtractionResult, error) {
	if _, err := os.Stat(path); err != nil {
		return models.ExtractionResult{}, err
	}
	extractor, err := agent.NewExtractor(ctx, log, cfg.GetOCRConfig(), cfg.GetTextractConfig())
	if err != nil {
		return models.ExtractionResult{}, err
	}
	return extractor.Extract(ctx, path, contentType, forceOCR), nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
