package pricing

import (
	"github.com/pkg/errors"
	"github.com/tiktoken-go/tokenizer"
)

// EstimateTokens counts tokens for a text using the model's tokenizer,
// falling back to cl100k_base for models tiktoken does not know. Used for
// prompt-side accounting when a vendor response omits usage metadata.
func EstimateTokens(model string, text string) (int, error) {
	codec, err := tokenizer.ForModel(tokenizer.Model(model))
	if err != nil {
		codec, err = tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			return 0, errors.Wrap(err, "failed to load fallback tokenizer")
		}
	}

	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, errors.Wrap(err, "failed to tokenize text")
	}
	return len(ids), nil
}
