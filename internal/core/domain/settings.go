package domain

// AIProvider identifies the AI/embedding provider
type AIProvider string

const (
	AIProviderOpenAI AIProvider = "openai"
	AIProviderVoyage AIProvider = "voyage"
	AIProviderGroq   AIProvider = "groq"
	AIProviderOllama AIProvider = "ollama"
)

// VectorBackend selects where request-scoped collections live
type VectorBackend string

const (
	VectorBackendMemory VectorBackend = "memory"
	VectorBackendMilvus VectorBackend = "milvus"
)

// IsValid returns true if this is a known backend
func (b VectorBackend) IsValid() bool {
	return b == VectorBackendMemory || b == VectorBackendMilvus
}

// EmbeddingSettings configures the embedding service
type EmbeddingSettings struct {
	Provider AIProvider `json:"provider"`
	Model    string     `json:"model"`
	APIKey   string     `json:"-"` // Never serialize to JSON
	BaseURL  string     `json:"base_url,omitempty"`
}

// IsConfigured returns true if embedding settings are properly configured
func (e *EmbeddingSettings) IsConfigured() bool {
	if e.Provider == "" {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings configures the chat completion service
type LLMSettings struct {
	Provider    AIProvider `json:"provider"`
	Model       string     `json:"model"`
	APIKey      string     `json:"-"` // Never serialize to JSON
	BaseURL     string     `json:"base_url,omitempty"`
	Temperature float64    `json:"temperature"`
	MaxTokens   int        `json:"max_tokens"`
}

// IsConfigured returns true if LLM settings are properly configured
func (l *LLMSettings) IsConfigured() bool {
	if l.Provider == "" {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// RequiresAPIKey returns true if this provider requires an API key
func (p AIProvider) RequiresAPIKey() bool {
	switch p {
	case AIProviderOllama:
		return false // Self-hosted, no API key needed
	default:
		return true
	}
}

// IsValid returns true if this is a known provider
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOpenAI, AIProviderVoyage, AIProviderGroq, AIProviderOllama:
		return true
	default:
		return false
	}
}

// SupportsEmbedding returns true if the provider offers an embedding API we use
func (p AIProvider) SupportsEmbedding() bool {
	return p == AIProviderOpenAI || p == AIProviderVoyage
}

// SupportsChat returns true if the provider offers an OpenAI-compatible chat API
func (p AIProvider) SupportsChat() bool {
	return p == AIProviderOpenAI || p == AIProviderGroq || p == AIProviderOllama
}
