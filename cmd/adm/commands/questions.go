package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"wordgames/internal/models"
	"wordgames/internal/segment"
	"wordgames/internal/store"
	contextutils "wordgames/internal/utils"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// questionEntry is one question in an import file. Words may be given
// explicitly; otherwise they are segmented from the source text.
type questionEntry struct {
	SourceText string                 `yaml:"source_text"`
	Words      []string               `yaml:"words"`
	Payload    map[string]interface{} `yaml:"payload"`
}

// QuestionCommands returns the question bank commands
func QuestionCommands(env *Env) *cobra.Command {
	questionsCmd := &cobra.Command{
		Use:   "questions",
		Short: "Question bank commands",
		Long: `Question bank commands for the word games backend.

Available commands:
  import    - Import questions for a game from a YAML file`,
	}

	questionsCmd.AddCommand(importCmd(env))

	return questionsCmd
}

// importCmd returns the import command
func importCmd(env *Env) *cobra.Command {
	var kindName, file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import questions from a YAML file",
		Long: `Import questions into a game's question bank.

The file holds a list of entries with source_text, optional words and an
optional payload map passed to clients verbatim.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			kind, err := models.ParseGameKind(kindName)
			if err != nil {
				return err
			}

			f, err := os.Open(file)
			if err != nil {
				return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to open %s: %v", file, err)
			}
			defer func() { _ = f.Close() }()

			entries, err := parseQuestionFile(f)
			if err != nil {
				return err
			}

			container, err := env.Container(ctx)
			if err != nil {
				return err
			}
			segmenter, err := container.GetSegmenter()
			if err != nil {
				return err
			}

			saved, err := importQuestions(ctx, container.GetQuestionStore(), segmenter, kind, entries)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d question(s) into %s\n", saved, kind)
			return nil
		},
	}

	cmd.Flags().StringVar(&kindName, "kind", "", "Game kind to import into")
	cmd.Flags().StringVar(&file, "file", "", "YAML file with the questions")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// parseQuestionFile decodes and checks an import file
func parseQuestionFile(r io.Reader) ([]questionEntry, error) {
	var entries []questionEntry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil && err != io.EOF {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to parse question file: %v", err)
	}

	for i := range entries {
		entries[i].SourceText = strings.TrimSpace(entries[i].SourceText)
		if entries[i].SourceText == "" {
			return nil, contextutils.WrapErrorf(contextutils.ErrMissingRequired, "question %d has no source_text", i+1)
		}
	}
	return entries, nil
}

// importQuestions segments and saves every entry, stopping at the first failure
func importQuestions(ctx context.Context, questions store.QuestionStore, segmenter segment.Segmenter, kind models.GameKind, entries []questionEntry) (int, error) {
	saved := 0
	for i, entry := range entries {
		words := entry.Words
		if len(words) == 0 {
			segmented, err := segmenter.Segment(ctx, entry.SourceText)
			if err != nil {
				return saved, contextutils.WrapErrorf(err, "failed to segment question %d", i+1)
			}
			words = segmented
		}

		q := &models.Question{SourceText: entry.SourceText, Words: words}
		if len(entry.Payload) > 0 {
			payload, err := json.Marshal(entry.Payload)
			if err != nil {
				return saved, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "question %d has an invalid payload: %v", i+1, err)
			}
			q.Payload = payload
		}

		if err := questions.SaveQuestion(ctx, kind, q); err != nil {
			return saved, contextutils.WrapErrorf(err, "failed to save question %d", i+1)
		}
		saved++
	}
	return saved, nil
}
