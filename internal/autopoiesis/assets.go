package autopoiesis

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"text/template"
)

//go:embed templates/*
var embeddedTemplates embed.FS

// Template file names, relative to the templates root.
const (
	toolSpecFile = "tool-spec.txt"
	systemFile   = "system.txt"
	generateFile = "generate.txt"
	reviseFile   = "revise.txt"
	wrapperFile  = "tool.go.tmpl"
)

// PromptVars are substituted into the prompts once, at load time.
type PromptVars struct {
	// CredentialEnv is the variable generated tools read their API key from.
	CredentialEnv string
}

// Assets holds the parsed prompt and wrapper templates. It is built once and
// shared read-only by the formatter and the strategies.
type Assets struct {
	directSystem string
	agentSystem  string
	generate     *template.Template
	revise       *template.Template
	wrapper      *template.Template
}

// DefaultAssets loads the templates compiled into the binary.
func DefaultAssets(vars PromptVars) (*Assets, error) {
	sub, err := fs.Sub(embeddedTemplates, "templates")
	if err != nil {
		return nil, &TemplateError{Name: "templates", Err: err}
	}
	return LoadAssets(sub, vars)
}

// LoadAssetsDir loads templates from dir, or the embedded set when dir is
// empty.
func LoadAssetsDir(dir string, vars PromptVars) (*Assets, error) {
	if dir == "" {
		return DefaultAssets(vars)
	}
	return LoadAssets(os.DirFS(dir), vars)
}

// LoadAssets reads and parses every template from fsys. A missing or
// malformed template is a *TemplateError.
func LoadAssets(fsys fs.FS, vars PromptVars) (*Assets, error) {
	parse := func(name string) (*template.Template, error) {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, &TemplateError{Name: name, Err: err}
		}
		tmpl, err := template.New(name).Option("missingkey=error").Parse(string(data))
		if err != nil {
			return nil, &TemplateError{Name: name, Err: err}
		}
		return tmpl, nil
	}

	specTmpl, err := parse(toolSpecFile)
	if err != nil {
		return nil, err
	}
	toolSpec, err := execute(specTmpl, vars)
	if err != nil {
		return nil, err
	}

	systemTmpl, err := parse(systemFile)
	if err != nil {
		return nil, err
	}
	a := &Assets{}
	if a.directSystem, err = execute(systemTmpl, systemData{ToolSpec: toolSpec}); err != nil {
		return nil, err
	}
	if a.agentSystem, err = execute(systemTmpl, systemData{ToolSpec: toolSpec, WithTools: true}); err != nil {
		return nil, err
	}

	if a.generate, err = parse(generateFile); err != nil {
		return nil, err
	}
	if a.revise, err = parse(reviseFile); err != nil {
		return nil, err
	}
	if a.wrapper, err = parse(wrapperFile); err != nil {
		return nil, err
	}
	return a, nil
}

type systemData struct {
	ToolSpec  string
	WithTools bool
}

func execute(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", &TemplateError{Name: tmpl.Name(), Err: err}
	}
	return buf.String(), nil
}

// SystemPrompt returns the system prompt for a strategy with or without
// lookup tools.
func (a *Assets) SystemPrompt(withTools bool) string {
	if withTools {
		return a.agentSystem
	}
	return a.directSystem
}

// GeneratePrompt renders the prompt asking for a new tool.
func (a *Assets) GeneratePrompt(req ToolRequest) (string, error) {
	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	return execute(a.generate, map[string]string{"RequestJSON": string(data)})
}

// RevisePrompt renders the prompt asking for a revision of rec given the
// output of its last run.
func (a *Assets) RevisePrompt(rec ToolRecord, logs string) (string, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode tool: %w", err)
	}
	return execute(a.revise, map[string]string{"ToolJSON": string(data), "Logs": logs})
}
