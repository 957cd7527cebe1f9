package validator

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/viztrtr/viztrtr-core/internal/errs"
	"github.com/viztrtr/viztrtr-core/internal/types"
)

// prop is one property of an exported interface or type alias, the shape
// DiscoveryAgent's components most often expose as a React props type.
type prop struct {
	Name     string
	Optional bool
	Type     string
}

// exportedSymbol is one top-level exported declaration extracted from a
// TypeScript/JavaScript file: a function/component/class/interface/type
// alias, with its prop shape when it has one.
type exportedSymbol struct {
	Name  string
	Kind  string // "interface", "type", "function", "class"
	Props []prop
}

// parserFor selects the tree-sitter grammar by file extension, mirroring
// the teacher's TypeScriptCodeParser.Parse dispatch.
func parserFor(path string) *sitter.Parser {
	p := sitter.NewParser()
	if strings.HasSuffix(path, ".js") || strings.HasSuffix(path, ".jsx") ||
		strings.HasSuffix(path, ".mjs") || strings.HasSuffix(path, ".cjs") {
		p.SetLanguage(javascript.GetLanguage())
	} else {
		p.SetLanguage(typescript.GetLanguage())
	}
	return p
}

// extractExportedSymbols walks the AST of content (as if at path, for
// grammar selection) and returns every top-level exported interface, type
// alias, function declaration and class declaration it finds.
func extractExportedSymbols(path, content string) ([]exportedSymbol, error) {
	parser := parserFor(path)
	tree, err := parser.ParseCtx(context.Background(), nil, []byte(content))
	if err != nil {
		return nil, errs.Wrap(errs.ValidatorIO, "parse "+path, err)
	}
	defer tree.Close()

	src := []byte(content)
	var symbols []exportedSymbol
	root := tree.RootNode()

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "export_statement":
				walk(child)
			case "interface_declaration":
				if sym, ok := parseInterface(child, src); ok {
					symbols = append(symbols, sym)
				}
			case "type_alias_declaration":
				if sym, ok := parseTypeAlias(child, src); ok {
					symbols = append(symbols, sym)
				}
			case "function_declaration":
				if sym, ok := parseFunction(child, src); ok {
					symbols = append(symbols, sym)
				}
			case "class_declaration":
				if sym, ok := parseClass(child, src); ok {
					symbols = append(symbols, sym)
				}
			case "lexical_declaration", "variable_declaration":
				symbols = append(symbols, parseVarComponents(child, src)...)
			}
		}
	}
	walk(root)
	return symbols, nil
}

func text(n *sitter.Node, src []byte) string {
	return string(src[n.StartByte():n.EndByte()])
}

func parseInterface(n *sitter.Node, src []byte) (exportedSymbol, bool) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return exportedSymbol{}, false
	}
	body := n.ChildByFieldName("body")
	return exportedSymbol{Name: text(name, src), Kind: "interface", Props: propsFromBody(body, src)}, true
}

func parseTypeAlias(n *sitter.Node, src []byte) (exportedSymbol, bool) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return exportedSymbol{}, false
	}
	value := n.ChildByFieldName("value")
	return exportedSymbol{Name: text(name, src), Kind: "type", Props: propsFromBody(value, src)}, true
}

func parseFunction(n *sitter.Node, src []byte) (exportedSymbol, bool) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return exportedSymbol{}, false
	}
	return exportedSymbol{Name: text(name, src), Kind: "function", Props: propsFromParams(n, src)}, true
}

func parseClass(n *sitter.Node, src []byte) (exportedSymbol, bool) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return exportedSymbol{}, false
	}
	return exportedSymbol{Name: text(name, src), Kind: "class"}, true
}

func parseVarComponents(n *sitter.Node, src []byte) []exportedSymbol {
	var out []exportedSymbol
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() != "variable_declarator" {
			continue
		}
		nameNode := child.ChildByFieldName("name")
		valueNode := child.ChildByFieldName("value")
		if nameNode == nil || valueNode == nil {
			continue
		}
		if valueNode.Type() != "arrow_function" && valueNode.Type() != "function" {
			continue
		}
		out = append(out, exportedSymbol{
			Name:  text(nameNode, src),
			Kind:  "function",
			Props: propsFromParams(valueNode, src),
		})
	}
	return out
}

// propsFromBody extracts property_signature children of an interface or
// object-type body: name, optional marker, and the raw type text.
func propsFromBody(body *sitter.Node, src []byte) []prop {
	if body == nil {
		return nil
	}
	var props []prop
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		if child.Type() != "property_signature" {
			continue
		}
		nameNode := child.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		p := prop{Name: text(nameNode, src)}
		afterName := string(src[nameNode.EndByte():child.EndByte()])
		p.Optional = strings.HasPrefix(strings.TrimSpace(afterName), "?")
		if typeAnn := child.ChildByFieldName("type"); typeAnn != nil {
			p.Type = strings.TrimSpace(strings.TrimPrefix(text(typeAnn, src), ":"))
		}
		props = append(props, p)
	}
	return props
}

// propsFromParams approximates a function/component's prop shape from a
// destructured first parameter's type annotation, when present.
func propsFromParams(fn *sitter.Node, src []byte) []prop {
	params := fn.ChildByFieldName("parameters")
	if params == nil || params.NamedChildCount() == 0 {
		return nil
	}
	first := params.NamedChild(0)
	typeAnn := first.ChildByFieldName("type")
	if typeAnn == nil {
		return nil
	}
	return propsFromBody(typeAnn, src)
}

func findSymbol(symbols []exportedSymbol, name string) (exportedSymbol, bool) {
	for _, s := range symbols {
		if s.Name == name {
			return s, true
		}
	}
	return exportedSymbol{}, false
}

func findProp(props []prop, name string) (prop, bool) {
	for _, p := range props {
		if p.Name == name {
			return p, true
		}
	}
	return prop{}, false
}

// CheckInterfaceCompatibility implements spec.md section 4.2(c). impactHigh
// signals the Recommendation carries impact>=8 (the high-impact band), and
// grep is a textual search returning files referencing componentName,
// excluding the file itself.
func CheckInterfaceCompatibility(path, original, modified string, impactHigh bool, grep func(componentName string) []string) (types.ValidationResult, error) {
	result := types.ValidationResult{Valid: true}

	origSymbols, err := extractExportedSymbols(path, original)
	if err != nil {
		return result, err
	}
	modSymbols, err := extractExportedSymbols(path, modified)
	if err != nil {
		return result, err
	}

	componentName := strings.TrimSuffix(strings.TrimSuffix(path, ".tsx"), ".jsx")
	if idx := strings.LastIndexAny(componentName, "/\\"); idx >= 0 {
		componentName = componentName[idx+1:]
	}

	var widening bool
	for _, orig := range origSymbols {
		mod, ok := findSymbol(modSymbols, orig.Name)
		if !ok {
			result.AddViolation(types.Violation{
				Kind:    types.ViolationExportShape,
				Message: fmt.Sprintf("exported symbol %q is no longer present", orig.Name),
				File:    path,
			})
			widening = true
			continue
		}
		for _, op := range orig.Props {
			mp, stillPresent := findProp(mod.Props, op.Name)
			if !stillPresent {
				if !op.Optional {
					result.AddViolation(types.Violation{
						Kind:    types.ViolationPropRemoved,
						Message: fmt.Sprintf("%s.%s: required prop removed", orig.Name, op.Name),
						Token:   op.Name,
						File:    path,
					})
					widening = true
				}
				continue
			}
			if op.Type != "" && mp.Type != "" && op.Type != mp.Type {
				result.AddViolation(types.Violation{
					Kind:    types.ViolationPropTypeChange,
					Message: fmt.Sprintf("%s.%s: type changed from %q to %q", orig.Name, op.Name, op.Type, mp.Type),
					Token:   op.Name,
					File:    path,
				})
				widening = true
			}
		}
	}

	if widening && impactHigh && grep != nil {
		referencers := grep(componentName)
		if len(referencers) > 0 {
			result.AddViolation(types.Violation{
				Kind:    types.ViolationCallerImpact,
				Message: fmt.Sprintf("high-impact interface change to %s affects %d referencing file(s); update callers or preserve the prop", componentName, len(referencers)),
				File:    path,
			})
		}
	}

	return result, nil
}
