// Package detector infers a project's web framework from its manifests.
package detector

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/mod/modfile"
	"gopkg.in/yaml.v3"

	"github.com/QTest-hq/apimap/pkg/model"
)

// probe inspects one ecosystem's manifests under root
type probe struct {
	name   string
	detect func(root string) model.Framework
}

var probes = []probe{
	{"node", detectNode},
	{"python", detectPython},
	{"jvm", detectJVM},
	{"go", detectGo},
	{"ruby", detectRuby},
	{"php", detectPHP},
	{"dotnet", detectDotNet},
	{"rust", detectRust},
	{"dart", detectDart},
	{"elixir", detectElixir},
}

// Detect returns the framework of the project at root, or unknown. Manifest
// read and parse errors are logged and the next ecosystem is probed.
func Detect(root string) model.Framework {
	for _, p := range probes {
		if fw := safeDetect(p, root); fw != model.FrameworkUnknown {
			log.Debug().Str("ecosystem", p.name).Str("framework", string(fw)).Msg("framework detected")
			return fw
		}
	}
	return model.FrameworkUnknown
}

// DetectWithOverride honors a configured framework name before probing.
func DetectWithOverride(root, override string) model.Framework {
	if override != "" {
		if fw, ok := model.ParseFramework(override); ok {
			return fw
		}
		log.Warn().Str("framework", override).Msg("unknown framework override, detecting")
	}
	return Detect(root)
}

func safeDetect(p probe, root string) (fw model.Framework) {
	defer func() {
		if r := recover(); r != nil {
			log.Debug().Str("ecosystem", p.name).Interface("panic", r).Msg("detection probe failed")
			fw = model.FrameworkUnknown
		}
	}()
	return p.detect(root)
}

func readManifest(root, name string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(root, name))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Debug().Err(err).Str("file", name).Msg("unreadable manifest")
		}
		return "", false
	}
	return string(data), true
}

// firstMatch returns the framework of the first rule whose pattern occurs
// in content.
func firstMatch(content string, rules []rule) model.Framework {
	for _, r := range rules {
		if r.re.MatchString(content) {
			return r.fw
		}
	}
	return model.FrameworkUnknown
}

type rule struct {
	re *regexp.Regexp
	fw model.Framework
}

type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func detectNode(root string) model.Framework {
	content, ok := readManifest(root, "package.json")
	if !ok {
		return model.FrameworkUnknown
	}
	var pkg packageJSON
	if err := json.Unmarshal([]byte(content), &pkg); err != nil {
		log.Debug().Err(err).Str("file", "package.json").Msg("invalid manifest")
		return model.FrameworkUnknown
	}
	has := func(name string) bool {
		_, a := pkg.Dependencies[name]
		_, b := pkg.DevDependencies[name]
		return a || b
	}
	switch {
	case has("next"):
		return model.FrameworkNextJS
	case has("@nestjs/core"):
		return model.FrameworkNestJS
	case has("fastify"):
		return model.FrameworkFastify
	case has("@hapi/hapi") || has("hapi"):
		return model.FrameworkHapi
	case has("koa") || has("@koa/router") || has("koa-router"):
		return model.FrameworkKoa
	case has("express"):
		return model.FrameworkExpress
	}
	return model.FrameworkUnknown
}

var pythonRules = []rule{
	{regexp.MustCompile(`(?im)^\s*["']?fastapi\b`), model.FrameworkFastAPI},
	{regexp.MustCompile(`(?im)^\s*["']?(?:django|djangorestframework)\b`), model.FrameworkDjango},
	{regexp.MustCompile(`(?im)^\s*["']?flask\b`), model.FrameworkFlask},
}

var pythonInlineRules = []rule{
	{regexp.MustCompile(`(?i)["']fastapi\b`), model.FrameworkFastAPI},
	{regexp.MustCompile(`(?i)["'](?:django|djangorestframework)\b`), model.FrameworkDjango},
	{regexp.MustCompile(`(?i)["']flask\b`), model.FrameworkFlask},
}

func detectPython(root string) model.Framework {
	var manifests []string
	if matches, err := filepath.Glob(filepath.Join(root, "requirements*.txt")); err == nil {
		for _, m := range matches {
			manifests = append(manifests, filepath.Base(m))
		}
	}
	manifests = append(manifests, "pyproject.toml", "Pipfile", "setup.py")

	for _, name := range manifests {
		content, ok := readManifest(root, name)
		if !ok {
			continue
		}
		if fw := firstMatch(content, pythonRules); fw != model.FrameworkUnknown {
			return fw
		}
		if fw := firstMatch(content, pythonInlineRules); fw != model.FrameworkUnknown {
			return fw
		}
	}
	return model.FrameworkUnknown
}

var jvmRules = []rule{
	{regexp.MustCompile(`spring-boot|spring-web\b|spring-webmvc|spring-webflux`), model.FrameworkSpring},
	{regexp.MustCompile(`jakarta\.ws\.rs|javax\.ws\.rs|quarkus-resteasy|jersey`), model.FrameworkJAXRS},
}

func detectJVM(root string) model.Framework {
	for _, name := range []string{"pom.xml", "build.gradle", "build.gradle.kts"} {
		if content, ok := readManifest(root, name); ok {
			if fw := firstMatch(content, jvmRules); fw != model.FrameworkUnknown {
				return fw
			}
		}
	}
	return model.FrameworkUnknown
}

var goRouters = []struct {
	prefix string
	fw     model.Framework
}{
	{"github.com/gin-gonic/gin", model.FrameworkGin},
	{"github.com/labstack/echo", model.FrameworkEcho},
	{"github.com/gofiber/fiber", model.FrameworkFiber},
	{"github.com/go-chi/chi", model.FrameworkChi},
	{"github.com/gorilla/mux", model.FrameworkGorilla},
}

// detectGo reads go.mod requirements. A module without a known router is
// left undetected, even when its sources use net/http directly.
func detectGo(root string) model.Framework {
	content, ok := readManifest(root, "go.mod")
	if !ok {
		return model.FrameworkUnknown
	}
	f, err := modfile.ParseLax("go.mod", []byte(content), nil)
	if err != nil {
		log.Debug().Err(err).Str("file", "go.mod").Msg("invalid manifest")
		return model.FrameworkUnknown
	}
	for _, router := range goRouters {
		for _, req := range f.Require {
			if strings.HasPrefix(req.Mod.Path, router.prefix) {
				return router.fw
			}
		}
	}
	return model.FrameworkUnknown
}

var rubyRules = []rule{
	{regexp.MustCompile(`(?m)^\s*gem\s+['"]rails['"]`), model.FrameworkRails},
	{regexp.MustCompile(`(?m)^\s*gem\s+['"]sinatra['"]`), model.FrameworkSinatra},
}

func detectRuby(root string) model.Framework {
	if content, ok := readManifest(root, "Gemfile"); ok {
		return firstMatch(content, rubyRules)
	}
	return model.FrameworkUnknown
}

type composerJSON struct {
	Require    map[string]string `json:"require"`
	RequireDev map[string]string `json:"require-dev"`
}

func detectPHP(root string) model.Framework {
	content, ok := readManifest(root, "composer.json")
	if !ok {
		return model.FrameworkUnknown
	}
	var c composerJSON
	if err := json.Unmarshal([]byte(content), &c); err != nil {
		log.Debug().Err(err).Str("file", "composer.json").Msg("invalid manifest")
		return model.FrameworkUnknown
	}
	fw := model.FrameworkUnknown
	for _, deps := range []map[string]string{c.Require, c.RequireDev} {
		for name := range deps {
			switch {
			case name == "laravel/framework" || name == "laravel/lumen-framework":
				return model.FrameworkLaravel
			case strings.HasPrefix(name, "symfony/"):
				fw = model.FrameworkSymfony
			}
		}
	}
	return fw
}

var dotnetWeb = regexp.MustCompile(`Microsoft\.NET\.Sdk\.Web|Microsoft\.AspNetCore\.`)

// csprojPatterns cover the root and the usual src/<Project>/ layouts,
// shallowest first.
var csprojPatterns = []string{"*.csproj", "*/*.csproj", "*/*/*.csproj"}

func detectDotNet(root string) model.Framework {
	fsys := os.DirFS(root)
	for _, pattern := range csprojPatterns {
		projects, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			log.Debug().Err(err).Str("pattern", pattern).Msg("csproj glob failed")
			continue
		}
		sort.Strings(projects)
		for _, p := range projects {
			if content, ok := readManifest(root, filepath.FromSlash(p)); ok && dotnetWeb.MatchString(content) {
				return model.FrameworkASPNet
			}
		}
	}
	return model.FrameworkUnknown
}

var rustRules = []rule{
	{regexp.MustCompile(`(?m)^\s*actix-web\b`), model.FrameworkActix},
	{regexp.MustCompile(`(?m)^\s*axum\b`), model.FrameworkAxum},
	{regexp.MustCompile(`(?m)^\s*rocket\b`), model.FrameworkRocket},
}

func detectRust(root string) model.Framework {
	if content, ok := readManifest(root, "Cargo.toml"); ok {
		return firstMatch(content, rustRules)
	}
	return model.FrameworkUnknown
}

type pubspec struct {
	Dependencies map[string]any `yaml:"dependencies"`
}

func detectDart(root string) model.Framework {
	content, ok := readManifest(root, "pubspec.yaml")
	if !ok {
		return model.FrameworkUnknown
	}
	var p pubspec
	if err := yaml.Unmarshal([]byte(content), &p); err != nil {
		log.Debug().Err(err).Str("file", "pubspec.yaml").Msg("invalid manifest")
		return model.FrameworkUnknown
	}
	for _, dep := range []string{"shelf_router", "shelf", "dart_frog"} {
		if _, ok := p.Dependencies[dep]; ok {
			return model.FrameworkShelf
		}
	}
	return model.FrameworkUnknown
}

var phoenixDep = regexp.MustCompile(`\{\s*:phoenix\s*,`)

func detectElixir(root string) model.Framework {
	if content, ok := readManifest(root, "mix.exs"); ok && phoenixDep.MatchString(content) {
		return model.FrameworkPhoenix
	}
	return model.FrameworkUnknown
}
