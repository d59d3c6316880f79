package migrate

import (
	"os"
	"path"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/boshu2/hookcheck/internal/safety"
)

// defaultAnchors ground commands whose tool has no project file of its own.
var defaultAnchors = []string{"README.md"}

var pythonAnchors = []string{"pyproject.toml", "setup.py", "requirements.txt", "setup.cfg"}

// anchorFamilies maps a tool name to the project files that show the tool is
// in use, most specific first.
var anchorFamilies = map[string][]string{
	"npm":            {"package.json"},
	"pnpm":           {"package.json"},
	"yarn":           {"package.json"},
	"npx":            {"package.json"},
	"bun":            {"package.json"},
	"node":           {"package.json"},
	"jest":           {"package.json"},
	"tsc":            {"tsconfig.json", "package.json"},
	"prisma":         {"prisma/schema.prisma", "schema.prisma", "package.json"},
	"pytest":         pythonAnchors,
	"python":         pythonAnchors,
	"python3":        pythonAnchors,
	"pip":            pythonAnchors,
	"pip3":           pythonAnchors,
	"docker":         {"Dockerfile"},
	"docker-compose": {"docker-compose.yml", "docker-compose.yaml", "compose.yml", "compose.yaml"},
	"compose":        {"docker-compose.yml", "docker-compose.yaml", "compose.yml", "compose.yaml"},
	"make":           {"Makefile", "makefile"},
	"go":             {"go.mod"},
	"cargo":          {"Cargo.toml"},
	"mvn":            {"pom.xml"},
	"gradle":         {"build.gradle", "build.gradle.kts", "settings.gradle"},
	"java":           {"pom.xml", "build.gradle"},
	"swagger-cli":    {"openapi.yaml", "openapi.yml", "swagger.yaml", "swagger.json", "package.json"},
	"dotnet":         defaultAnchors,
}

// Anchors for legacy vocabulary that names something inside a file.
var (
	routeAnchors  = []string{"src/", "app/", "server/", "api/", "lib/"}
	schemaAnchors = []string{"prisma/schema.prisma", "schema.prisma", "db/schema.sql", "schema.sql", "migrations/", "db/"}
)

// toolName returns the tool a payload starts with, or "" when its first word
// is not a known tool. "./node_modules/.bin/jest" names jest.
func toolName(payload string) string {
	words, err := shellquote.Split(payload)
	if err != nil || len(words) == 0 {
		words = strings.Fields(payload)
	}
	if len(words) == 0 {
		return ""
	}
	name := strings.ToLower(path.Base(strings.ReplaceAll(words[0], `\`, "/")))
	if safety.CommandPrefixes[name] {
		return name
	}
	return ""
}

// AnchorCandidates returns the anchor files tried for tool, in order.
func AnchorCandidates(tool string) []string {
	if c, ok := anchorFamilies[strings.ToLower(tool)]; ok {
		return c
	}
	return defaultAnchors
}

// pickAnchor returns the first candidate that exists inside the sandbox, and
// found reports whether one did. Otherwise it falls back to the first
// candidate the path rules accept, or to the first candidate at all.
func (m *Migrator) pickAnchor(candidates []string) (anchor string, found bool) {
	if len(candidates) == 0 {
		return "", false
	}
	if m.sb == nil {
		for _, c := range candidates {
			if _, err := safety.Validate(c, m.opts.Safety); err == nil {
				return c, true
			}
		}
		return candidates[0], false
	}
	fallback := ""
	for _, c := range candidates {
		r, err := m.sb.Resolve(c)
		if err != nil {
			continue
		}
		if fallback == "" {
			fallback = c
		}
		info, err := os.Stat(r.Abs)
		if err != nil {
			continue
		}
		if r.DirHint && !info.IsDir() {
			continue
		}
		return c, true
	}
	if fallback != "" {
		return fallback, false
	}
	return candidates[0], false
}

// commandAnchors lists the anchors tried for tool: its project files, then
// the same files under each read-allow root.
func (m *Migrator) commandAnchors(tool string) []string {
	base := AnchorCandidates(tool)
	out := append([]string(nil), base...)
	for _, root := range m.readAllow() {
		for _, c := range base {
			joined := path.Join(root, c)
			if strings.HasSuffix(c, "/") {
				joined += "/"
			}
			out = append(out, joined)
		}
	}
	return out
}

func (m *Migrator) readAllow() []string {
	roots := m.opts.Safety.ReadAllow
	if m.sb != nil {
		roots = m.sb.Config().ReadAllow
	}
	var out []string
	for _, r := range roots {
		r = strings.Trim(strings.TrimSpace(r), "/")
		if r != "" && r != "." {
			out = append(out, r)
		}
	}
	return out
}
