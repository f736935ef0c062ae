package conversation

import (
	"time"

	"github.com/go-go-golems/parley/pkg/fuse"
)

const (
	DefaultTimeout = 30 * time.Second
	DefaultRetries = 0
)

// Options carries the recognized per-conversation configuration. All fields
// are optional; nil means "use the default". Merge is right-biased.
type Options struct {
	Temperature          *float64               `yaml:"temperature,omitempty"`
	MaxTokens            *int                   `yaml:"max_tokens,omitempty"`
	Timeout              *time.Duration         `yaml:"timeout,omitempty"`
	Retries              *int                   `yaml:"retries,omitempty"`
	ResponseSchema       map[string]interface{} `yaml:"response_schema,omitempty"`
	SafetySettings       interface{}            `yaml:"safety_settings,omitempty"`
	Fuse                 *fuse.Config           `yaml:"fuse,omitempty"`
	TaskType             *string                `yaml:"task_type,omitempty"`
	OutputDimensionality *int                   `yaml:"output_dimensionality,omitempty"`
}

// Merge folds other into o, other winning wherever it sets a field.
func (o Options) Merge(other Options) Options {
	ret := o
	if other.Temperature != nil {
		ret.Temperature = other.Temperature
	}
	if other.MaxTokens != nil {
		ret.MaxTokens = other.MaxTokens
	}
	if other.Timeout != nil {
		ret.Timeout = other.Timeout
	}
	if other.Retries != nil {
		ret.Retries = other.Retries
	}
	if other.ResponseSchema != nil {
		ret.ResponseSchema = other.ResponseSchema
	}
	if other.SafetySettings != nil {
		ret.SafetySettings = other.SafetySettings
	}
	if other.Fuse != nil {
		ret.Fuse = other.Fuse
	}
	if other.TaskType != nil {
		ret.TaskType = other.TaskType
	}
	if other.OutputDimensionality != nil {
		ret.OutputDimensionality = other.OutputDimensionality
	}
	return ret
}

// RetryCount returns the configured number of additional attempts after the
// first, defaulting to zero.
func (o Options) RetryCount() int {
	if o.Retries == nil || *o.Retries < 0 {
		return DefaultRetries
	}
	return *o.Retries
}

// CallTimeout bounds one network call, not the whole turn.
func (o Options) CallTimeout() time.Duration {
	if o.Timeout == nil || *o.Timeout <= 0 {
		return DefaultTimeout
	}
	return *o.Timeout
}

func Float(v float64) *float64                { return &v }
func Int(v int) *int                          { return &v }
func String(v string) *string                 { return &v }
func Duration(v time.Duration) *time.Duration { return &v }
