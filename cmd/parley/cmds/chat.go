package cmds

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-go-golems/parley/pkg/async"
	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/inference"
)

var ChatCmd = &cobra.Command{
	Use:   "chat [prompt]",
	Short: "Send a prompt to a chat model and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		providerName, _ := cmd.Flags().GetString("provider")
		model, _ := cmd.Flags().GetString("model")
		system, _ := cmd.Flags().GetString("system")
		temperature, _ := cmd.Flags().GetFloat64("temperature")
		maxTokens, _ := cmd.Flags().GetInt("max-tokens")
		retries, _ := cmd.Flags().GetInt("retries")
		stream, _ := cmd.Flags().GetBool("stream")
		images, _ := cmd.Flags().GetStringArray("image")
		showCost, _ := cmd.Flags().GetBool("show-cost")

		stepSettings, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		engine, err := engineForProvider(providerName, stepSettings)
		if err != nil {
			return err
		}

		opts := conversation.Options{
			Retries: conversation.Int(retries),
		}
		if cmd.Flags().Changed("temperature") {
			opts.Temperature = conversation.Float(temperature)
		}
		if cmd.Flags().Changed("max-tokens") {
			opts.MaxTokens = conversation.Int(maxTokens)
		}

		c := conversation.New().
			WithProvider(engine).
			WithModel(model).
			Opts(opts)
		if system != "" {
			c = c.System(system)
		}
		c = c.User(strings.Join(args, " "))
		for _, img := range images {
			c = c.Image(img)
			if lastErr := c.LastError(); lastErr != nil {
				return lastErr
			}
		}

		runner := inference.NewRunner()
		ctx := cmd.Context()

		if stream {
			task := async.StreamWithCallbacks(ctx, c, runner, async.Callbacks{
				OnDelta: func(delta string, completion string) {
					fmt.Print(delta)
				},
				OnDone: func(text string, err error) {
					fmt.Println()
				},
			})
			if _, err := task.Await(ctx); err != nil {
				return err
			}
			return nil
		}

		updated, err := runner.Run(ctx, c)
		if err != nil {
			return err
		}
		fmt.Println(updated.LastText)
		if showCost {
			fmt.Fprintf(os.Stderr, "cost: $%.6f tokens: %d\n", updated.Cost, updated.TokensUsed)
		}
		return nil
	},
}

func init() {
	ChatCmd.Flags().String("provider", "gemini", "Provider to use (gemini, openai, ollama)")
	ChatCmd.Flags().String("model", "", "Model name (provider default when empty)")
	ChatCmd.Flags().String("system", "", "System instruction")
	ChatCmd.Flags().Float64("temperature", 0.7, "Sampling temperature")
	ChatCmd.Flags().Int("max-tokens", 0, "Maximum tokens to generate")
	ChatCmd.Flags().Int("retries", 0, "Additional attempts after the first failure")
	ChatCmd.Flags().Bool("stream", false, "Stream the reply as it is generated")
	ChatCmd.Flags().StringArray("image", nil, "Attach an image (path, URL or base64)")
	ChatCmd.Flags().Bool("show-cost", false, "Print accumulated cost and token usage")
	ChatCmd.Flags().String("settings-file", "", "YAML settings file with API keys and base URLs")
}
