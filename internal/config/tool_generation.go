package config

const (
	StrategyAugmented = "augmented"
	StrategyDirect    = "direct"
)

// ToolGenerationConfig configures the generation strategies and the Ouroboros loop.
type ToolGenerationConfig struct {
	MaxIterations   int    `yaml:"max_iterations"`   // revision budget N
	MaxAgentRounds  int    `yaml:"max_agent_rounds"` // model turns per agent run
	InitialStrategy string `yaml:"initial_strategy"` // augmented, direct
	LookupTimeout   string `yaml:"lookup_timeout"`   // per auxiliary tool call
	// TemplatesDir overrides the embedded prompt and wrapper templates.
	TemplatesDir string `yaml:"templates_dir"`
	// LookupCategories limits the lookup tools offered to the agent.
	// Empty offers all of them.
	LookupCategories []string `yaml:"lookup_categories"` // packages, research
}

// LookupCategoryNames lists the accepted lookup_categories values.
var LookupCategoryNames = []string{"packages", "research", "general"}

// DefaultToolGenerationConfig returns default generation settings.
func DefaultToolGenerationConfig() ToolGenerationConfig {
	return ToolGenerationConfig{
		MaxIterations:   5,
		MaxAgentRounds:  8,
		InitialStrategy: StrategyAugmented,
		LookupTimeout:   "30s",
	}
}
