package cmds

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-go-golems/parley/pkg/async"
	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/inference"
)

var EmbedCmd = &cobra.Command{
	Use:   "embed [text...]",
	Short: "Compute embedding vectors for one or more texts",
	Long: `Compute embedding vectors for the given texts, or for stdin lines when no
arguments are given. Results are printed one JSON array per input line.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		providerName, _ := cmd.Flags().GetString("provider")
		model, _ := cmd.Flags().GetString("model")
		dimensions, _ := cmd.Flags().GetInt("dimensions")
		taskType, _ := cmd.Flags().GetString("task-type")
		parallel, _ := cmd.Flags().GetInt("parallel")

		stepSettings, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		engine, err := engineForProvider(providerName, stepSettings)
		if err != nil {
			return err
		}

		inputs := args
		if len(inputs) == 0 {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				if line := scanner.Text(); line != "" {
					inputs = append(inputs, line)
				}
			}
			if err := scanner.Err(); err != nil {
				return err
			}
		}

		opts := conversation.Options{}
		if cmd.Flags().Changed("dimensions") {
			opts.OutputDimensionality = conversation.Int(dimensions)
		}
		if taskType != "" {
			opts.TaskType = conversation.String(taskType)
		}

		runner := inference.NewRunner()
		ctx := cmd.Context()

		results := async.Map(ctx, inputs, parallel, func(ctx context.Context, input string) ([]float64, error) {
			c := conversation.New().
				WithProvider(engine).
				WithModel(model).
				Opts(opts).
				User(input)
			updated, err := runner.Embed(ctx, c)
			if err != nil {
				return nil, err
			}
			return updated.LastEmbedding, nil
		})

		enc := json.NewEncoder(os.Stdout)
		for i, res := range results {
			vec, err := res.Value()
			if err != nil {
				fmt.Fprintf(os.Stderr, "input %d: %v\n", i, err)
				continue
			}
			if err := enc.Encode(vec); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	EmbedCmd.Flags().String("provider", "gemini", "Provider to use (gemini, openai, ollama)")
	EmbedCmd.Flags().String("model", "", "Embedding model (provider default when empty)")
	EmbedCmd.Flags().Int("dimensions", 0, "Output dimensionality (128, 256, 512, 768, 1536 or 3072)")
	EmbedCmd.Flags().String("task-type", "", "Embedding task type hint")
	EmbedCmd.Flags().Int("parallel", 4, "Maximum concurrent requests")
	EmbedCmd.Flags().String("settings-file", "", "YAML settings file with API keys and base URLs")
}
