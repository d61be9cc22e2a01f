// stepgen reads the @step annotations of the step config structs and prints
// a catalog of the step variants they document, as JSON or as a Markdown
// table. With -check it also verifies that the catalog and the variants
// registered in the builder name the same set of steps.
//
// Usage: go run ./codegen/cmd/stepgen [-o file] [-format json|markdown] [-check] ./steps
package main

import (
	"cmp"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/simon020286/go-dataflow/builder"
	_ "github.com/simon020286/go-dataflow/steps"
)

// StepMetadata describes one step variant
type StepMetadata struct {
	Name        string      `json:"name"`
	Category    string      `json:"category"`
	Arity       string      `json:"arity"`
	Description string      `json:"description"`
	Inputs      []InputMeta `json:"inputs"`
}

// InputMeta describes one positional argument of a step variant
type InputMeta struct {
	Position    int    `json:"position"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

// StepsRegistry is the generated catalog
type StepsRegistry struct {
	Steps   []StepMetadata `json:"steps"`
	Version string         `json:"version"`
}

const catalogVersion = "1.0.0"

var (
	ErrUndocumented = errors.New("registered variant has no @step config")
	ErrUnregistered = errors.New("documented variant is not registered")

	// @step name=xxx category=xxx arity=xxx description=xxx
	stepComment = regexp.MustCompile(`^@step\s+(.+)$`)
	stepKey     = regexp.MustCompile(`(?:^|\s)(name|category|arity|description)=`)
)

func main() {
	output := flag.String("o", "", "Write the catalog to this file instead of stdout")
	format := flag.String("format", "json", "Catalog format (json, markdown)")
	check := flag.Bool("check", false, "Fail when the catalog and the registered variants differ")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-o file] [-format json|markdown] [-check] <directory>\n", os.Args[0])
		os.Exit(1)
	}

	steps, err := parseDirectory(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing directory: %v\n", err)
		os.Exit(1)
	}

	if *check {
		if err := checkCatalog(steps, builder.ListStepTypes()); err != nil {
			fmt.Fprintf(os.Stderr, "Catalog out of date:\n%v\n", err)
			os.Exit(1)
		}
	}

	encode, err := encoderFor(*format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	registry := StepsRegistry{Steps: steps, Version: catalogVersion}
	if *output == "" {
		if err := encode(os.Stdout, registry); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing catalog: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := writeFile(*output, registry, encode); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing catalog: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Generated %s (%d steps)\n", *output, len(steps))
}

// parseDirectory collects the annotated configs of every non-test Go file
// in dir, sorted by step name
func parseDirectory(dir string) ([]StepMetadata, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.go"))
	if err != nil {
		return nil, err
	}

	fset := token.NewFileSet()
	var steps []StepMetadata
	for _, path := range files {
		if strings.HasSuffix(path, "_test.go") {
			continue
		}
		found, err := parseFile(fset, path)
		if err != nil {
			return nil, fmt.Errorf("error parsing %s: %w", path, err)
		}
		steps = append(steps, found...)
	}

	slices.SortFunc(steps, func(a, b StepMetadata) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return steps, nil
}

func parseFile(fset *token.FileSet, path string) ([]StepMetadata, error) {
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	var steps []StepMetadata
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		meta := parseStepComment(gen.Doc)
		if meta == nil {
			continue
		}
		for _, spec := range gen.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok || !strings.HasSuffix(ts.Name.Name, "Config") {
				continue
			}
			if st, ok := ts.Type.(*ast.StructType); ok {
				step := *meta
				step.Inputs = parseStructFields(st)
				steps = append(steps, step)
			}
		}
	}
	return steps, nil
}

// parseStepComment returns the metadata of the first @step line of doc,
// or nil when there is none or it carries no name
func parseStepComment(doc *ast.CommentGroup) *StepMetadata {
	if doc == nil {
		return nil
	}
	for _, c := range doc.List {
		text := strings.TrimSpace(strings.TrimPrefix(c.Text, "//"))
		m := stepComment.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		params := parseParams(m[1])
		if params["name"] == "" {
			continue
		}
		return &StepMetadata{
			Name:        params["name"],
			Category:    params["category"],
			Arity:       params["arity"],
			Description: params["description"],
		}
	}
	return nil
}

// parseParams splits "k1=v1 k2=some value" on the known keys, so values
// may contain spaces
func parseParams(s string) map[string]string {
	res := map[string]string{}
	locs := stepKey.FindAllStringSubmatchIndex(s, -1)
	for i, loc := range locs {
		end := len(s)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		res[s[loc[2]:loc[3]]] = strings.TrimSpace(s[loc[1]:end])
	}
	return res
}

func parseStructFields(st *ast.StructType) []InputMeta {
	var inputs []InputMeta
	for _, field := range st.Fields.List {
		if len(field.Names) == 0 {
			continue
		}
		input := InputMeta{
			Position: len(inputs),
			Name:     toSnakeCase(field.Names[0].Name),
			Type:     typeToString(field.Type),
		}
		if field.Tag != nil {
			tag := reflect.StructTag(strings.Trim(field.Tag.Value, "`"))
			applyStepTag(tag.Get("step"), &input)
		}
		inputs = append(inputs, input)
	}
	return inputs
}

// applyStepTag reads `step:"required,name=x,default=y,desc=z"`
func applyStepTag(tag string, input *InputMeta) {
	if tag == "" {
		return
	}
	for part := range strings.SplitSeq(tag, ",") {
		key, value, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch key {
		case "required":
			input.Required = true
		case "name":
			input.Name = value
		case "default":
			input.Default = value
		case "desc":
			input.Description = value
		}
	}
}

func typeToString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.ArrayType:
		return "[]" + typeToString(t.Elt)
	case *ast.MapType:
		return "map[" + typeToString(t.Key) + "]" + typeToString(t.Value)
	case *ast.StarExpr:
		return "*" + typeToString(t.X)
	case *ast.SelectorExpr:
		return typeToString(t.X) + "." + t.Sel.Name
	default:
		return "any"
	}
}

// toSnakeCase keeps runs of capitals together: TargetURL is target_url and
// HTTPClient is http_client
func toSnakeCase(s string) string {
	runes := []rune(s)
	var sb strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) ||
				(unicode.IsUpper(prev) && nextLower) {
				sb.WriteByte('_')
			}
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}

// checkCatalog compares the documented variants with the registered ones
func checkCatalog(steps []StepMetadata, registered []string) error {
	documented := map[string]bool{}
	for _, s := range steps {
		documented[s.Name] = true
	}

	var errs []error
	for _, name := range registered {
		if !documented[name] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUndocumented, name))
		}
		delete(documented, name)
	}
	for _, s := range steps {
		if documented[s.Name] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnregistered, s.Name))
		}
	}
	return errors.Join(errs...)
}

type encoder func(io.Writer, StepsRegistry) error

func encoderFor(format string) (encoder, error) {
	switch format {
	case "json":
		return encodeJSON, nil
	case "markdown", "md":
		return encodeMarkdown, nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

func writeFile(path string, registry StepsRegistry, encode encoder) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f, registry); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func encodeJSON(w io.Writer, registry StepsRegistry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(registry)
}

func encodeMarkdown(w io.Writer, registry StepsRegistry) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Step variants (catalog %s)\n", registry.Version)
	for _, s := range registry.Steps {
		fmt.Fprintf(&sb, "\n## %s\n\n%s\n\nCategory: %s, children: %s\n",
			s.Name, s.Description, s.Category, s.Arity)
		if len(s.Inputs) == 0 {
			continue
		}
		sb.WriteString("\n| # | Argument | Type | Required | Default |\n")
		sb.WriteString("|---|----------|------|----------|---------|\n")
		for _, in := range s.Inputs {
			fmt.Fprintf(&sb, "| %d | %s | `%s` | %t | %s |\n",
				in.Position, in.Name, in.Type, in.Required, in.Default)
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
