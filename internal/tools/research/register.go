package research

import (
	"toolsmith/internal/tools"
)

// RegisterAll registers every research tool, guarded, with the given registry.
func RegisterAll(registry *tools.Registry, client *Client) error {
	allTools := []*tools.Tool{
		client.GoSearchTool(),
		client.GoInfoTool(),
		client.NPMSearchTool(),
		client.NPMInfoTool(),
		client.WebSearchTool(),
	}

	for _, tool := range allTools {
		if err := registry.Register(Guard(tool)); err != nil {
			return err
		}
	}

	return nil
}

// NewRegistry returns a registry holding every research tool.
func NewRegistry(client *Client) (*tools.Registry, error) {
	reg := tools.NewRegistry()
	if err := RegisterAll(reg, client); err != nil {
		return nil, err
	}
	return reg, nil
}
