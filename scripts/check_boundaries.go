package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const modulePath = "quorum"

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

// layerRule lists the module-local prefixes a layer may import besides the
// standard library. Third-party imports are rejected for listed layers.
type layerRule struct {
	allowLocal    []string
	allowExternal bool
	forbidAdapter bool
}

func main() {
	violations := collectViolations("contexts")
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File != violations[j].File {
			return violations[i].File < violations[j].File
		}
		if violations[i].Line != violations[j].Line {
			return violations[i].Line < violations[j].Line
		}
		return violations[i].Import < violations[j].Import
	})

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func collectViolations(root string) []violation {
	var violations []violation

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		parts := strings.Split(filepath.ToSlash(path), "/")
		if len(parts) < 4 || parts[0] != "contexts" {
			return nil
		}
		servicePrefix := fmt.Sprintf("%s/contexts/%s/%s", modulePath, parts[1], parts[2])
		violations = append(violations, validateFile(path, parts[3], servicePrefix)...)
		return nil
	})

	return violations
}

func rulesFor(layer string, servicePrefix string) (layerRule, bool) {
	switch layer {
	case "domain":
		return layerRule{
			allowLocal:    []string{servicePrefix + "/domain"},
			forbidAdapter: true,
		}, true
	case "ports":
		return layerRule{
			allowLocal: []string{
				servicePrefix + "/domain",
				modulePath + "/internal/shared",
			},
			forbidAdapter: true,
		}, true
	case "application":
		return layerRule{
			allowLocal: []string{
				servicePrefix + "/application",
				servicePrefix + "/domain",
				servicePrefix + "/ports",
			},
			forbidAdapter: true,
		}, true
	default:
		return layerRule{}, false
	}
}

func validateFile(path string, layer string, servicePrefix string) []violation {
	normalized := filepath.ToSlash(path)
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return []violation{{File: normalized, Line: 1, Rule: "file must parse"}}
	}

	rule, checked := rulesFor(layer, servicePrefix)
	var violations []violation
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, "\"")
		line := fset.Position(imp.Pos()).Line
		report := func(reason string) {
			violations = append(violations, violation{File: normalized, Line: line, Import: importPath, Rule: reason})
		}

		if hasPrefix(importPath, modulePath+"/contexts") && !hasPrefix(importPath, servicePrefix) {
			report("cross-service imports are forbidden")
		}
		if !checked || isStdlib(importPath) {
			continue
		}
		if rule.forbidAdapter && strings.Contains(importPath, "/adapters/") {
			report(layer + " must not import adapters")
			continue
		}
		if isLocal(importPath) {
			if !isAllowed(importPath, rule.allowLocal) {
				report(layer + " import is outside explicit allowlist")
			}
			continue
		}
		if !rule.allowExternal {
			report(layer + " must not depend on third-party packages")
		}
	}
	return violations
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isAllowed(importPath string, allowedPrefixes []string) bool {
	for _, p := range allowedPrefixes {
		if hasPrefix(importPath, p) {
			return true
		}
	}
	return false
}

func isLocal(importPath string) bool {
	return hasPrefix(importPath, modulePath)
}

func isStdlib(importPath string) bool {
	if isLocal(importPath) {
		return false
	}
	first := importPath
	if idx := strings.Index(first, "/"); idx != -1 {
		first = first[:idx]
	}
	return !strings.Contains(first, ".")
}
