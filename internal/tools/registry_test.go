package tools

import (
	"context"
	"errors"
	"testing"
)

func noop(ctx context.Context, args map[string]any) (string, error) { return "", nil }

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	if reg == nil {
		t.Fatal("NewRegistry returned nil")
	}
	if reg.Count() != 0 {
		t.Errorf("new registry should be empty, got %d tools", reg.Count())
	}
}

func TestRegisterAndGet(t *testing.T) {
	reg := NewRegistry()

	tool := &Tool{
		Name:        "npm-info",
		Description: "A test tool",
		Category:    CategoryPackages,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return "success", nil
		},
	}

	if err := reg.Register(tool); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got := reg.Get("npm-info")
	if got == nil {
		t.Fatal("Get returned nil for registered tool")
	}
	if got.Priority != 50 {
		t.Errorf("expected default priority 50, got %d", got.Priority)
	}
	if !reg.Has("npm-info") || reg.Has("npm-search") {
		t.Error("Has returned wrong answer")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	reg := NewRegistry()
	tool := &Tool{Name: "dupe", Execute: noop}

	if err := reg.Register(tool); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	err := reg.Register(tool)
	if !errors.Is(err, ErrToolAlreadyRegistered) {
		t.Fatalf("expected ErrToolAlreadyRegistered, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		name    string
		tool    *Tool
		wantErr error
	}{
		{"empty name", &Tool{Name: "", Execute: noop}, ErrToolNameEmpty},
		{"nil execute", &Tool{Name: "test"}, ErrToolExecuteNil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Register(tt.tool)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGetByCategoryAndAllOrdering(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Tool{Name: "npm-search", Category: CategoryPackages, Priority: 80, Execute: noop})
	reg.MustRegister(&Tool{Name: "npm-info", Category: CategoryPackages, Priority: 60, Execute: noop})
	reg.MustRegister(&Tool{Name: "web-search", Category: CategoryResearch, Priority: 60, Execute: noop})

	pkgs := reg.GetByCategory(CategoryPackages)
	if len(pkgs) != 2 || pkgs[0].Name != "npm-search" {
		t.Errorf("unexpected category listing: %v", pkgs)
	}

	all := reg.All()
	want := []string{"npm-search", "npm-info", "web-search"}
	for i, name := range want {
		if all[i].Name != name {
			t.Errorf("All()[%d] = %s, want %s", i, all[i].Name, name)
		}
	}
}

func TestSubset(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Tool{Name: "npm-search", Category: CategoryPackages, Priority: 80, Execute: noop})
	reg.MustRegister(&Tool{Name: "go-info", Category: CategoryPackages, Priority: 60, Execute: noop})
	reg.MustRegister(&Tool{Name: "web-search", Category: CategoryResearch, Priority: 60, Execute: noop})

	sub := reg.Subset(CategoryPackages, CategoryPackages)
	if got := sub.Names(); len(got) != 2 || got[0] != "go-info" || got[1] != "npm-search" {
		t.Errorf("Subset(packages) = %v", got)
	}
	if sub.Has("web-search") {
		t.Error("research tool leaked into packages subset")
	}
	if reg.Count() != 3 {
		t.Errorf("Subset modified the source registry: %d tools", reg.Count())
	}
	if NewRegistry().Subset(CategoryResearch).Count() != 0 {
		t.Error("subset of empty registry should be empty")
	}
}

func TestDefinitions(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Tool{
		Name:        "npm-info",
		Description: "readme lookup",
		Execute:     noop,
		Schema: ToolSchema{
			Required:   []string{"input"},
			Properties: map[string]Property{"input": {Type: "string", Description: "package name"}},
		},
	})

	defs := reg.Definitions()
	if len(defs) != 1 {
		t.Fatalf("expected 1 definition, got %d", len(defs))
	}
	schema := defs[0].InputSchema
	if schema["type"] != "object" {
		t.Errorf("schema type = %v", schema["type"])
	}
	req, _ := schema["required"].([]string)
	if len(req) != 1 || req[0] != "input" {
		t.Errorf("required = %v", schema["required"])
	}
	props := schema["properties"].(map[string]any)
	input := props["input"].(map[string]any)
	if input["description"] != "package name" {
		t.Errorf("property description lost: %v", input)
	}
}

func TestExecute(t *testing.T) {
	reg := NewRegistry()

	reg.MustRegister(&Tool{
		Name: "echo",
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			msg, err := StringArg(args, "message")
			if err != nil {
				return "", err
			}
			return "Echo: " + msg, nil
		},
		Schema: ToolSchema{
			Required:   []string{"message"},
			Properties: map[string]Property{"message": {Type: "string"}},
		},
	})

	result, err := reg.Execute(context.Background(), "echo", map[string]any{"message": "hello"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Result != "Echo: hello" {
		t.Errorf("got result %q, want %q", result.Result, "Echo: hello")
	}
	if !result.IsSuccess() {
		t.Error("expected IsSuccess to be true")
	}

	_, err = reg.Execute(context.Background(), "echo", map[string]any{})
	if !errors.Is(err, ErrMissingRequiredArg) {
		t.Errorf("expected ErrMissingRequiredArg, got %v", err)
	}

	_, err = reg.Execute(context.Background(), "echo", map[string]any{"message": 42})
	if !errors.Is(err, ErrInvalidArgType) {
		t.Errorf("expected ErrInvalidArgType, got %v", err)
	}

	_, err = reg.Execute(context.Background(), "nonexistent", map[string]any{})
	if !errors.Is(err, ErrToolNotFound) {
		t.Errorf("expected ErrToolNotFound, got %v", err)
	}
}
