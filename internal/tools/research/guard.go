package research

import (
	"context"
	"fmt"

	"toolsmith/internal/logging"
	"toolsmith/internal/tools"
)

// Guard wraps a tool so that it never returns an error: any failure,
// including a panic, becomes the result text "Error: <cause>".
func Guard(tool *tools.Tool) *tools.Tool {
	inner := tool.Execute
	guarded := *tool
	guarded.Execute = func(ctx context.Context, args map[string]any) (result string, err error) {
		defer func() {
			if r := recover(); r != nil {
				logging.ToolsWarn("%s panicked: %v", tool.Name, r)
				result, err = fmt.Sprintf("Error: %v", r), nil
			}
		}()
		out, execErr := inner(ctx, args)
		if execErr != nil {
			logging.ToolsDebug("%s failed: %v", tool.Name, execErr)
			return "Error: " + execErr.Error(), nil
		}
		return out, nil
	}
	return &guarded
}
