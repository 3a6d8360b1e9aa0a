// Package manifest defines the ProjectManifest: the authoritative structured
// plan the Core agent produces and the rest of the pipeline consumes. The
// validator rejects, it never coerces.
package manifest

import (
	"fmt"
	"strings"
	"unicode"

	"appforge/internal/faults"
)

// AppType is the closed set of application archetypes.
type AppType string

const (
	AppCRUD      AppType = "crud"
	AppEcommerce AppType = "ecommerce"
	AppDashboard AppType = "dashboard"
	AppSocial    AppType = "social"
	AppTodo      AppType = "todo"
	AppBlog      AppType = "blog"
	AppAuth      AppType = "auth"
	AppBooking   AppType = "booking"
	AppAPI       AppType = "api"
)

var validAppTypes = map[AppType]bool{
	AppCRUD: true, AppEcommerce: true, AppDashboard: true, AppSocial: true,
	AppTodo: true, AppBlog: true, AppAuth: true, AppBooking: true, AppAPI: true,
}

// AgentRole names the specialist agents a manifest can request.
type AgentRole string

const (
	RoleArch    AgentRole = "ARCH"
	RoleBackend AgentRole = "BACKEND"
	RoleUIX     AgentRole = "UIX"
	RoleDebug   AgentRole = "DEBUG"
	RoleQuality AgentRole = "QUALITY"
	RoleTest    AgentRole = "TEST"
)

var validRoles = map[AgentRole]bool{
	RoleArch: true, RoleBackend: true, RoleUIX: true,
	RoleDebug: true, RoleQuality: true, RoleTest: true,
}

// TechStack maps layers to concrete technology choices.
type TechStack struct {
	Backend  string `json:"backend"`
	Frontend string `json:"frontend"`
	Styling  string `json:"styling"`
	Database string `json:"database,omitempty"`
	Auth     string `json:"auth,omitempty"`
}

// ModelField describes one field of a data model.
type ModelField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// DataModel describes one persisted entity.
type DataModel struct {
	Name   string       `json:"name"`
	Fields []ModelField `json:"fields"`
}

// APIEndpoint describes one HTTP operation of the generated backend.
type APIEndpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description,omitempty"`
}

// FileSpec names one file the pipeline must generate.
type FileSpec struct {
	Path    string `json:"path"`
	Purpose string `json:"purpose,omitempty"`
}

// ProjectManifest is the authoritative plan for one generation. Created by
// the Core agent; immutable for the remainder of the pipeline.
type ProjectManifest struct {
	Analysis        string        `json:"analysis"`
	AppType         AppType       `json:"app_type"`
	Features        []string      `json:"features"`
	TechStack       TechStack     `json:"tech_stack"`
	Models          []DataModel   `json:"models"`
	Endpoints       []APIEndpoint `json:"endpoints"`
	FilesToGenerate []FileSpec    `json:"files_to_generate"`
	Integrations    []string      `json:"integrations"`
	AgentsNeeded    []AgentRole   `json:"agents_needed"`
	Priority        string        `json:"priority"`
}

// RequiredFiles is the minimum file set every manifest must cover: backend
// entry, dependency manifest, frontend entry component, frontend package
// manifest, HTML entry, bundler config, frontend bootstrap.
func RequiredFiles() []string {
	return []string{
		"backend/main.py",
		"backend/requirements.txt",
		"frontend/src/App.jsx",
		"frontend/package.json",
		"frontend/index.html",
		"frontend/vite.config.js",
		"frontend/src/main.jsx",
	}
}

// Validate checks every schema invariant. It returns a
// faults.ErrSchemaInvalid error on the first violation.
func (m *ProjectManifest) Validate() error {
	if !validAppTypes[m.AppType] {
		return faults.Wrap(faults.ErrSchemaInvalid, "unknown app_type %q", m.AppType)
	}
	if len(m.Features) == 0 {
		return faults.Wrap(faults.ErrSchemaInvalid, "features must be non-empty")
	}
	if m.TechStack.Backend == "" || m.TechStack.Frontend == "" {
		return faults.Wrap(faults.ErrSchemaInvalid, "tech_stack requires backend and frontend")
	}
	for _, model := range m.Models {
		if model.Name == "" || !unicode.IsUpper(rune(model.Name[0])) {
			return faults.Wrap(faults.ErrSchemaInvalid, "model name %q must begin with uppercase", model.Name)
		}
	}
	for _, ep := range m.Endpoints {
		if !strings.HasPrefix(ep.Path, "/") {
			return faults.Wrap(faults.ErrSchemaInvalid, "endpoint path %q must begin with /", ep.Path)
		}
	}
	for _, role := range m.AgentsNeeded {
		if !validRoles[role] {
			return faults.Wrap(faults.ErrSchemaInvalid, "unknown agent role %q", role)
		}
	}

	have := make(map[string]bool, len(m.FilesToGenerate))
	for _, f := range m.FilesToGenerate {
		have[f.Path] = true
	}
	for _, required := range RequiredFiles() {
		if !have[required] {
			return faults.Wrap(faults.ErrSchemaInvalid, "files_to_generate missing required %s", required)
		}
	}
	return nil
}

// inferAppType matches description keywords against the closed app_type set.
func inferAppType(description string) AppType {
	d := strings.ToLower(description)
	switch {
	case strings.Contains(d, "todo") || strings.Contains(d, "task list"):
		return AppTodo
	case strings.Contains(d, "blog") || strings.Contains(d, "article"):
		return AppBlog
	case strings.Contains(d, "shop") || strings.Contains(d, "store") || strings.Contains(d, "commerce") || strings.Contains(d, "cart"):
		return AppEcommerce
	case strings.Contains(d, "dashboard") || strings.Contains(d, "analytics") || strings.Contains(d, "chart"):
		return AppDashboard
	case strings.Contains(d, "social") || strings.Contains(d, "feed") || strings.Contains(d, "follow"):
		return AppSocial
	case strings.Contains(d, "login") || strings.Contains(d, "signup") || strings.Contains(d, "auth"):
		return AppAuth
	case strings.Contains(d, "booking") || strings.Contains(d, "reservation") || strings.Contains(d, "appointment"):
		return AppBooking
	case strings.Contains(d, "api only") || strings.Contains(d, "rest api"):
		return AppAPI
	default:
		return AppCRUD
	}
}

// DefaultManifest builds the fallback plan used when the Core agent's output
// fails schema validation. It always validates.
func DefaultManifest(projectName, description string) *ProjectManifest {
	appType := inferAppType(description)

	features := []string{
		"Create and list records",
		"Update and delete records",
		"Responsive single-page frontend",
	}
	switch appType {
	case AppTodo:
		features = []string{
			"Add, complete and delete todos",
			"Filter todos by status",
			"Persist todos in the backend",
		}
	case AppBlog:
		features = []string{
			"Write and publish posts",
			"List posts newest-first",
			"View a single post",
		}
	}

	files := make([]FileSpec, 0, len(RequiredFiles())+2)
	for _, p := range RequiredFiles() {
		files = append(files, FileSpec{Path: p})
	}
	files = append(files,
		FileSpec{Path: "backend/models.py", Purpose: "data models"},
		FileSpec{Path: "frontend/src/index.css", Purpose: "styles"},
	)

	m := &ProjectManifest{
		Analysis:  fmt.Sprintf("Default plan for %q: %s", projectName, firstLine(description)),
		AppType:   appType,
		Features:  features,
		TechStack: TechStack{Backend: "fastapi", Frontend: "react", Styling: "css", Database: "sqlite"},
		Models: []DataModel{
			{Name: "Item", Fields: []ModelField{
				{Name: "id", Type: "int"},
				{Name: "title", Type: "str"},
				{Name: "done", Type: "bool"},
			}},
		},
		Endpoints: []APIEndpoint{
			{Method: "GET", Path: "/api/items"},
			{Method: "POST", Path: "/api/items"},
			{Method: "PUT", Path: "/api/items/{id}"},
			{Method: "DELETE", Path: "/api/items/{id}"},
		},
		FilesToGenerate: files,
		AgentsNeeded:    []AgentRole{RoleBackend, RoleUIX},
		Priority:        "Ship a working baseline app",
	}
	return m
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 160 {
		s = s[:160]
	}
	return strings.TrimSpace(s)
}
