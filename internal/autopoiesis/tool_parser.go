package autopoiesis

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/gosimple/unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"toolsmith/internal/logging"
)

// toolResponseSchema is the shape every model response must have.
var toolResponseSchema = &jsonschema.Schema{
	Type:     "object",
	Required: []string{"name", "description", "inputSchema", "outputSchema", "code"},
	Properties: map[string]*jsonschema.Schema{
		"name":         {Type: "string"},
		"description":  {Type: "string"},
		"inputSchema":  {Type: "object"},
		"outputSchema": {Type: "object"},
		"code":         {Type: "string"},
	},
}

var resolvedToolResponseSchema = mustResolve(toolResponseSchema)

func mustResolve(s *jsonschema.Schema) *jsonschema.Resolved {
	r, err := s.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("tool response schema: %v", err))
	}
	return r
}

// ParseToolRecord turns raw model output into a validated ToolRecord.
// Invalid JSON yields *ParseError, a wrong shape yields *SchemaError.
func ParseToolRecord(raw string) (*ToolRecord, error) {
	var instance any
	if err := json.Unmarshal([]byte(raw), &instance); err != nil {
		logging.ToolgenDebug("parse failed: %v", err)
		return nil, &ParseError{Raw: raw, Err: err}
	}

	if err := resolvedToolResponseSchema.Validate(instance); err != nil {
		logging.ToolgenDebug("schema validation failed: %v", err)
		return nil, &SchemaError{Raw: raw, Detail: err.Error()}
	}

	// Shape is known good; decoding cannot lose fields from here.
	obj := instance.(map[string]any)
	rec := &ToolRecord{
		Name:         obj["name"].(string),
		Description:  obj["description"].(string),
		InputSchema:  obj["inputSchema"].(map[string]any),
		OutputSchema: obj["outputSchema"].(map[string]any),
		Code:         obj["code"].(string),
	}

	rec.Slug = Slugify(rec.Name)

	logging.Toolgen("parsed tool %q (slug %s, %d bytes of code)", rec.Name, rec.Slug, len(rec.Code))
	return rec, nil
}

var nonSlugRun = regexp.MustCompile(`[^a-z0-9]+`)

// fallbackSlug names tools whose name transliterates to nothing.
const fallbackSlug = "tool"

// Slugify lowercases s, strips diacritics, transliterates non-Latin scripts
// to ASCII and joins the remaining alphanumeric runs with single dashes.
// It never returns "" and Slugify(Slugify(s)) == Slugify(s).
func Slugify(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	slug := nonSlugRun.ReplaceAllString(strings.ToLower(unidecode.Unidecode(folded)), "-")
	if slug = strings.Trim(slug, "-"); slug == "" {
		return fallbackSlug
	}
	return slug
}

// PascalCase turns a slug into an exported Go identifier. Results that would
// not start with a letter get a "Tool" prefix.
func PascalCase(slug string) string {
	var sb strings.Builder
	for _, part := range strings.Split(slug, "-") {
		if part == "" {
			continue
		}
		r := []rune(part)
		sb.WriteRune(unicode.ToUpper(r[0]))
		sb.WriteString(string(r[1:]))
	}
	name := sb.String()
	if name == "" || !unicode.IsLetter([]rune(name)[0]) {
		name = "Tool" + name
	}
	return name
}
