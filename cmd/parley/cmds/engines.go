package cmds

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/providers/gemini"
	"github.com/go-go-golems/parley/pkg/providers/ollama"
	"github.com/go-go-golems/parley/pkg/providers/openai"
	"github.com/go-go-golems/parley/pkg/settings"
)

func loadSettings(cmd *cobra.Command) (*settings.StepSettings, error) {
	settingsFile, _ := cmd.Flags().GetString("settings-file")
	if settingsFile != "" {
		return settings.NewStepSettingsFromYAML(settingsFile)
	}
	return settings.NewStepSettings(), nil
}

func engineForProvider(name string, stepSettings *settings.StepSettings) (conversation.Provider, error) {
	switch name {
	case "gemini":
		return gemini.NewEngine(stepSettings), nil
	case "openai":
		return openai.NewEngine(stepSettings), nil
	case "ollama":
		return ollama.NewEngine(stepSettings), nil
	default:
		return nil, errors.Errorf("unknown provider %q (want gemini, openai or ollama)", name)
	}
}
