package model

// Provider is the backend API family a model belongs to.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
	ProviderOllama    Provider = "ollama"
)

// Descriptor is the static configuration of one model.
type Descriptor struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Provider    Provider `json:"provider"`
	Description string   `json:"description"`
	MaxTokens   int      `json:"maxTokens"`
}

// DefaultModel is selected when nothing else is configured.
const DefaultModel = "gpt-3.5-turbo"

var catalog = []Descriptor{
	{
		ID:          "gpt-4",
		Name:        "GPT-4",
		Provider:    ProviderOpenAI,
		Description: "Most capable OpenAI model for complex tasks",
		MaxTokens:   8000,
	},
	{
		ID:          "gpt-3.5-turbo",
		Name:        "GPT-3.5 Turbo",
		Provider:    ProviderOpenAI,
		Description: "Fast and efficient for most tasks",
		MaxTokens:   4000,
	},
	{
		ID:          "claude-3-5-sonnet-20241022",
		Name:        "Claude 3.5 Sonnet",
		Provider:    ProviderAnthropic,
		Description: "Anthropic's most intelligent model",
		MaxTokens:   8000,
	},
	{
		ID:          "gemini-1.5-pro",
		Name:        "Gemini Pro",
		Provider:    ProviderGoogle,
		Description: "Google's advanced AI model",
		MaxTokens:   8000,
	},
	{
		ID:          "llama2",
		Name:        "Local LLM",
		Provider:    ProviderOllama,
		Description: "Run AI models locally with Ollama",
		MaxTokens:   4000,
	},
}

// Catalog returns a copy of the known model descriptors.
func Catalog() []Descriptor {
	out := make([]Descriptor, len(catalog))
	copy(out, catalog)
	return out
}

// LookupModel finds a descriptor by id.
func LookupModel(id string) (Descriptor, bool) {
	for _, d := range catalog {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}
