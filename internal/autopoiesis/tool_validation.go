package autopoiesis

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"path"
	"strconv"
	"strings"
)

// CodeReport is a static reading of generated tool code. Findings are
// advisory: the code is executed regardless and the run output is what the
// revision sees.
type CodeReport struct {
	ParseError  error
	PackageName string
	Imports     []string
	Functions   []string
	HasRun      bool
	HasExamples bool
	Warnings    []string
}

// OK reports whether the code parsed and has no warnings.
func (r *CodeReport) OK() bool { return r.ParseError == nil && len(r.Warnings) == 0 }

// dangerousImports are allowed but flagged.
var dangerousImports = []string{"unsafe", "syscall", "runtime/cgo", "plugin", "os/exec"}

// InspectToolCode checks code against the tool contract: package main,
// func Run(string) (string, error), func Examples() []string, no main and no
// process exits.
func InspectToolCode(code string) *CodeReport {
	report := &CodeReport{}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "tool.go", code, parser.SkipObjectResolution)
	if err != nil {
		report.ParseError = err
		report.Warnings = append(report.Warnings, fmt.Sprintf("syntax error: %v", err))
		return report
	}

	report.PackageName = file.Name.Name
	if report.PackageName != "main" {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("package %s should be package main", report.PackageName))
	}

	for _, imp := range file.Imports {
		p, _ := strconv.Unquote(imp.Path.Value)
		report.Imports = append(report.Imports, p)
		for _, d := range dangerousImports {
			if p == d || strings.HasPrefix(p, d+"/") {
				report.Warnings = append(report.Warnings, fmt.Sprintf("potentially dangerous import: %s", p))
			}
		}
	}

	used := findUsedImports(file)
	for _, imp := range file.Imports {
		if imp.Name != nil && (imp.Name.Name == "_" || imp.Name.Name == ".") {
			continue
		}
		p, _ := strconv.Unquote(imp.Path.Value)
		name := importName(p)
		if imp.Name != nil {
			name = imp.Name.Name
		}
		if !used[name] {
			report.Warnings = append(report.Warnings, fmt.Sprintf("possibly unused import: %s", p))
		}
	}

	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil {
			continue
		}
		report.Functions = append(report.Functions, fn.Name.Name)
		switch fn.Name.Name {
		case "Run":
			report.HasRun = true
			if !isRunSignature(fn.Type) {
				report.Warnings = append(report.Warnings, "Run must have signature func(string) (string, error)")
			}
		case "Examples":
			report.HasExamples = true
			if !isExamplesSignature(fn.Type) {
				report.Warnings = append(report.Warnings, "Examples must have signature func() []string")
			}
		case "main":
			report.Warnings = append(report.Warnings, "func main is provided by the tool wrapper and must not be defined")
		}
		if fn.Body != nil {
			checkFunctionBody(fn.Body, report)
		}
	}

	if !report.HasRun {
		report.Warnings = append(report.Warnings, "func Run(input string) (string, error) not found")
	}
	if !report.HasExamples {
		report.Warnings = append(report.Warnings, "func Examples() []string not found")
	}
	return report
}

// importName guesses the package name of an import path: the last element,
// skipping a major version suffix and dropping a ".vN" gopkg.in suffix.
func importName(p string) string {
	name := path.Base(p)
	if len(name) > 1 && name[0] == 'v' && isDigits(name[1:]) && path.Dir(p) != "." {
		name = path.Base(path.Dir(p))
	}
	if i := strings.Index(name, ".v"); i > 0 {
		name = name[:i]
	}
	return strings.ReplaceAll(name, "-", "")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func isRunSignature(ft *ast.FuncType) bool {
	params := flatten(ft.Params)
	results := flatten(ft.Results)
	return len(params) == 1 && isIdent(params[0], "string") &&
		len(results) == 2 && isIdent(results[0], "string") && isIdent(results[1], "error")
}

func isExamplesSignature(ft *ast.FuncType) bool {
	if len(flatten(ft.Params)) != 0 {
		return false
	}
	results := flatten(ft.Results)
	if len(results) != 1 {
		return false
	}
	arr, ok := results[0].(*ast.ArrayType)
	return ok && arr.Len == nil && isIdent(arr.Elt, "string")
}

// flatten expands grouped fields ("a, b string") into one type per value.
func flatten(fl *ast.FieldList) []ast.Expr {
	if fl == nil {
		return nil
	}
	var types []ast.Expr
	for _, f := range fl.List {
		n := len(f.Names)
		if n == 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			types = append(types, f.Type)
		}
	}
	return types
}

func isIdent(e ast.Expr, name string) bool {
	id, ok := e.(*ast.Ident)
	return ok && id.Name == name
}

// checkFunctionBody flags calls that end the process or bypass the wrapper.
func checkFunctionBody(body *ast.BlockStmt, report *CodeReport) {
	ast.Inspect(body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		pkg, ok := sel.X.(*ast.Ident)
		if !ok {
			return true
		}
		switch {
		case pkg.Name == "os" && sel.Sel.Name == "Exit":
			report.Warnings = append(report.Warnings, "os.Exit() should not be used in tool code - return an error instead")
		case pkg.Name == "log" && strings.HasPrefix(sel.Sel.Name, "Fatal"):
			report.Warnings = append(report.Warnings, "log.Fatal() should not be used in tool code - return an error instead")
		}
		return true
	})
}

// findUsedImports finds all package names referenced by selector expressions
func findUsedImports(file *ast.File) map[string]bool {
	used := make(map[string]bool)
	ast.Inspect(file, func(n ast.Node) bool {
		if sel, ok := n.(*ast.SelectorExpr); ok {
			if ident, ok := sel.X.(*ast.Ident); ok {
				used[ident.Name] = true
			}
		}
		return true
	})
	return used
}
