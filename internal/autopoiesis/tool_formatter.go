package autopoiesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"go/format"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"toolsmith/internal/logging"
)

const schemaHint = " The action input should adhere to this JSON schema:\n"

// ToolFormatter wraps generated code into a runnable, self-describing tool
// file. It holds no mutable state.
type ToolFormatter struct {
	assets *Assets
}

// NewToolFormatter returns a formatter using the wrapper template in assets.
func NewToolFormatter(assets *Assets) *ToolFormatter {
	return &ToolFormatter{assets: assets}
}

type wrapperData struct {
	Name                string
	Slug                string
	TypeName            string
	InputSchemaComment  string
	OutputSchemaComment string
	Preamble            string
	Body                string
	QuotedSlug          string
	QuotedDescription   string
	QuotedInputSchema   string
	QuotedOutputSchema  string
}

// Format embeds rec.Code into the tool template. The same record always
// produces the same output.
func (f *ToolFormatter) Format(rec ToolRecord) (*FormattedToolRecord, error) {
	inputJSON, err := indentedJSON(rec.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("encode input schema: %w", err)
	}
	outputJSON, err := indentedJSON(rec.OutputSchema)
	if err != nil {
		return nil, fmt.Errorf("encode output schema: %w", err)
	}
	description, err := ToolDescription(rec)
	if err != nil {
		return nil, err
	}

	preamble, body := splitPackageClause(rec.Code)
	data := wrapperData{
		Name:                rec.Name,
		Slug:                rec.Slug,
		TypeName:            PascalCase(rec.Slug),
		InputSchemaComment:  commentBlock(inputJSON),
		OutputSchemaComment: commentBlock(outputJSON),
		Preamble:            preamble,
		Body:                body,
		QuotedSlug:          strconv.Quote(rec.Slug),
		QuotedDescription:   strconv.Quote(description),
		QuotedInputSchema:   strconv.Quote(inputJSON),
		QuotedOutputSchema:  strconv.Quote(outputJSON),
	}

	var buf bytes.Buffer
	if err := f.assets.wrapper.Execute(&buf, data); err != nil {
		return nil, &TemplateError{Name: wrapperFile, Err: err}
	}

	wrapped := buf.Bytes()
	if formatted, err := format.Source(wrapped); err == nil {
		wrapped = formatted
	} else {
		logging.ToolgenDebug("wrapped code for %s does not gofmt: %v", rec.Slug, err)
	}

	return &FormattedToolRecord{
		ToolRecord:  rec.Clone(),
		WrappedCode: string(wrapped),
	}, nil
}

// ToolDescription is the description an agent sees for the wrapped tool: the
// record description followed by the compact input schema, with braces
// doubled.
func ToolDescription(rec ToolRecord) (string, error) {
	compact, err := json.Marshal(rec.InputSchema)
	if err != nil {
		return "", fmt.Errorf("encode input schema: %w", err)
	}
	desc := rec.Description
	if !strings.HasSuffix(desc, ".") {
		desc += "."
	}
	schema := strings.NewReplacer("{", "{{", "}", "}}").Replace(string(compact))
	return desc + schemaHint + schema, nil
}

// indentedJSON renders v with two-space indentation. encoding/json sorts map
// keys, which keeps the output stable.
func indentedJSON(v map[string]any) (string, error) {
	if v == nil {
		v = map[string]any{}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func commentBlock(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight("// "+line, " ")
	}
	return strings.Join(lines, "\n")
}

// splitPackageClause splits code after its package clause so the wrapper can
// add its own imports ahead of the code's declarations. Code without a
// package clause is treated as the body of package main.
func splitPackageClause(code string) (preamble, body string) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "tool.go", code, parser.PackageClauseOnly|parser.ParseComments)
	if err != nil || file.Name == nil {
		return "package main", code
	}
	end := fset.Position(file.Name.End()).Offset
	if end <= 0 || end > len(code) {
		return "package main", code
	}
	return code[:end], code[end:]
}
