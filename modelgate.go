package modelgate

import (
	"fmt"
	"os"
	"strings"
)

// EnvModel is the environment variable consulted when no model string is
// supplied to [Registry.Get]. It may hold a comma-separated list; the first
// entry wins.
const EnvModel = "MODELGATE_MODEL"

// Name identifies a model as a provider/model pair, parsed from a single
// "provider/model-name" token. Immutable once parsed.
type Name struct {
	// Provider is the provider identifier, e.g. "anthropic".
	Provider string
	// Model is the provider-specific model name, e.g. "claude-sonnet-4-5".
	// Model names may themselves contain slashes (e.g. Together-style
	// "meta-llama/Llama-3-70b"), so everything after the first slash
	// belongs to the model.
	Model string
}

// ParseName parses a "provider/model-name" token into a Name.
// If the token is empty, the MODELGATE_MODEL environment variable is used
// as a fallback (taking the first entry of a comma-separated list).
func ParseName(model string) (Name, error) {
	if model == "" {
		model = os.Getenv(EnvModel)
		if i := strings.IndexByte(model, ','); i >= 0 {
			model = strings.TrimSpace(model[:i])
		}
	}
	if model == "" {
		return Name{}, fmt.Errorf("no model specified (and no %s defined)", EnvModel)
	}

	provider, rest, ok := strings.Cut(model, "/")
	if !ok || provider == "" || rest == "" {
		return Name{}, fmt.Errorf("model %q must be of the form provider/model-name", model)
	}
	return Name{Provider: provider, Model: rest}, nil
}

// String returns the canonical "provider/model-name" form.
func (n Name) String() string {
	return n.Provider + "/" + n.Model
}
