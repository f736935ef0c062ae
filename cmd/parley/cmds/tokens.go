package cmds

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-go-golems/parley/pkg/pricing"
)

var TokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Token counting and cost estimation",
}

var tokensCountCmd = &cobra.Command{
	Use:   "count [text...]",
	Short: "Count the tokens in a text",
	RunE: func(cmd *cobra.Command, args []string) error {
		model, _ := cmd.Flags().GetString("model")

		text := strings.Join(args, " ")
		if text == "" {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			text = string(b)
		}

		count, err := pricing.EstimateTokens(model, text)
		if err != nil {
			return err
		}
		fmt.Println(count)
		return nil
	},
}

var tokensCostCmd = &cobra.Command{
	Use:   "cost",
	Short: "Estimate the cost of a turn for a model",
	RunE: func(cmd *cobra.Command, args []string) error {
		model, _ := cmd.Flags().GetString("model")
		inputTokens, _ := cmd.Flags().GetInt("input")
		outputTokens, _ := cmd.Flags().GetInt("output")

		cost := pricing.Lookup(model).TurnCost(inputTokens, outputTokens)
		fmt.Printf("$%.6f\n", cost)
		return nil
	},
}

func init() {
	tokensCountCmd.Flags().String("model", "gpt-4o", "Model whose tokenizer to use")
	tokensCostCmd.Flags().String("model", "gpt-4o", "Model whose pricing to use")
	tokensCostCmd.Flags().Int("input", 0, "Input token count")
	tokensCostCmd.Flags().Int("output", 0, "Output token count")

	TokensCmd.AddCommand(tokensCountCmd)
	TokensCmd.AddCommand(tokensCostCmd)
}
