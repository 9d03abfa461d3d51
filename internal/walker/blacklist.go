package walker

import "github.com/QTest-hq/apimap/pkg/model"

// commonSkipDirs are never descended into, whatever the ecosystem.
var commonSkipDirs = []string{
	".git", ".hg", ".svn", ".idea", ".vscode",
	"node_modules", "vendor", "target", "dist", "build", "out", "coverage",
	"generated", "__generated__", "tmp",
	"test", "tests", "__tests__", "spec", "testdata",
}

// ecosystemSkipDirs adds the build and environment directories of one
// language family.
var ecosystemSkipDirs = map[string][]string{
	"node":   {".next", ".nuxt", ".turbo", ".svelte-kit", ".cache", "bower_components"},
	"python": {"__pycache__", ".venv", "venv", "env", "site-packages", ".tox", ".mypy_cache", ".pytest_cache"},
	"jvm":    {".gradle", ".mvn"},
	"dotnet": {"bin", "obj"},
	"ruby":   {".bundle", "log"},
	"php":    {"storage"},
	"rust":   {".cargo"},
	"dart":   {".dart_tool", ".pub-cache"},
	"elixir": {"_build", "deps", ".elixir_ls"},
}

var frameworkEcosystem = map[model.Framework]string{
	model.FrameworkExpress: "node",
	model.FrameworkNestJS:  "node",
	model.FrameworkNextJS:  "node",
	model.FrameworkFastify: "node",
	model.FrameworkKoa:     "node",
	model.FrameworkHapi:    "node",
	model.FrameworkFastAPI: "python",
	model.FrameworkFlask:   "python",
	model.FrameworkDjango:  "python",
	model.FrameworkSpring:  "jvm",
	model.FrameworkJAXRS:   "jvm",
	model.FrameworkRails:   "ruby",
	model.FrameworkSinatra: "ruby",
	model.FrameworkLaravel: "php",
	model.FrameworkSymfony: "php",
	model.FrameworkASPNet:  "dotnet",
	model.FrameworkActix:   "rust",
	model.FrameworkAxum:    "rust",
	model.FrameworkRocket:  "rust",
	model.FrameworkShelf:   "dart",
	model.FrameworkPhoenix: "elixir",
}

// SkipDirs returns the directory names pruned for a framework. Unknown
// frameworks prune the union of every ecosystem.
func SkipDirs(fw model.Framework) map[string]bool {
	skip := make(map[string]bool)
	for _, d := range commonSkipDirs {
		skip[d] = true
	}
	if eco, ok := frameworkEcosystem[fw]; ok {
		for _, d := range ecosystemSkipDirs[eco] {
			skip[d] = true
		}
		return skip
	}
	if fw == "" || fw == model.FrameworkUnknown {
		for _, dirs := range ecosystemSkipDirs {
			for _, d := range dirs {
				skip[d] = true
			}
		}
	}
	return skip
}
