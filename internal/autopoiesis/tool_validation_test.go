package autopoiesis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectToolCode_Conforming(t *testing.T) {
	report := InspectToolCode(converterCode)
	require.NoError(t, report.ParseError)
	assert.True(t, report.OK(), "warnings: %v", report.Warnings)
	assert.True(t, report.HasRun)
	assert.True(t, report.HasExamples)
	assert.Equal(t, "main", report.PackageName)
}

func TestInspectToolCode_Findings(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{
			name: "syntax error",
			code: "package main\nfunc Run(",
			want: "syntax error",
		},
		{
			name: "wrong package",
			code: "package tools\nfunc Run(s string) (string, error) { return s, nil }\nfunc Examples() []string { return nil }\n",
			want: "package tools should be package main",
		},
		{
			name: "missing Run",
			code: "package main\nfunc Examples() []string { return nil }\n",
			want: "func Run(input string) (string, error) not found",
		},
		{
			name: "bad Run signature",
			code: "package main\nfunc Run(s string) string { return s }\nfunc Examples() []string { return nil }\n",
			want: "Run must have signature",
		},
		{
			name: "bad Examples signature",
			code: "package main\nfunc Run(s string) (string, error) { return s, nil }\nfunc Examples() [2]string { return [2]string{} }\n",
			want: "Examples must have signature",
		},
		{
			name: "defines main",
			code: "package main\nfunc Run(s string) (string, error) { return s, nil }\nfunc Examples() []string { return nil }\nfunc main() {}\n",
			want: "func main is provided by the tool wrapper",
		},
		{
			name: "exits",
			code: "package main\nimport \"os\"\nfunc Run(s string) (string, error) { os.Exit(1); return s, nil }\nfunc Examples() []string { return nil }\n",
			want: "os.Exit() should not be used",
		},
		{
			name: "log fatal",
			code: "package main\nimport \"log\"\nfunc Run(s string) (string, error) { log.Fatalf(\"x\"); return s, nil }\nfunc Examples() []string { return nil }\n",
			want: "log.Fatal() should not be used",
		},
		{
			name: "dangerous import",
			code: "package main\nimport \"os/exec\"\nfunc Run(s string) (string, error) { return exec.Command(s).String(), nil }\nfunc Examples() []string { return nil }\n",
			want: "potentially dangerous import: os/exec",
		},
		{
			name: "unused import",
			code: "package main\nimport \"strings\"\nfunc Run(s string) (string, error) { return s, nil }\nfunc Examples() []string { return nil }\n",
			want: "possibly unused import: strings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := InspectToolCode(tt.code)
			assert.False(t, report.OK())
			found := false
			for _, w := range report.Warnings {
				if strings.Contains(w, tt.want) {
					found = true
				}
			}
			assert.True(t, found, "want %q in %v", tt.want, report.Warnings)
		})
	}
}

func TestInspectToolCode_GroupedParamsAndVersionedImports(t *testing.T) {
	code := `package main

import (
	"math/rand/v2"
	yaml "gopkg.in/yaml.v3"
)

func Run(input string) (out string, err error) {
	_ = yaml.Marshal
	return input + string(rune('a'+rand.IntN(3))), nil
}

func Examples() []string { return []string{"x"} }
`
	report := InspectToolCode(code)
	assert.True(t, report.OK(), "warnings: %v", report.Warnings)
	assert.Equal(t, []string{"math/rand/v2", "gopkg.in/yaml.v3"}, report.Imports)
}

func TestImportName(t *testing.T) {
	for in, want := range map[string]string{
		"strings":                  "strings",
		"encoding/json":            "json",
		"math/rand/v2":             "rand",
		"gopkg.in/yaml.v3":         "yaml",
		"github.com/google/go-cmp": "gocmp",
	} {
		assert.Equal(t, want, importName(in), in)
	}
}
