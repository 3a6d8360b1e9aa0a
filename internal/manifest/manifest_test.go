package manifest

import (
	"errors"
	"testing"

	"appforge/internal/faults"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultManifestValidates(t *testing.T) {
	m := DefaultManifest("TodoApp", "a todo list")
	require.NoError(t, m.Validate())
	assert.Equal(t, AppTodo, m.AppType)
	assert.GreaterOrEqual(t, len(m.Features), 3)
}

func TestDefaultManifestCoversRequiredFiles(t *testing.T) {
	m := DefaultManifest("Anything", "some app")
	have := map[string]bool{}
	for _, f := range m.FilesToGenerate {
		have[f.Path] = true
	}
	for _, p := range RequiredFiles() {
		assert.True(t, have[p], "missing required file %s", p)
	}
}

func TestInferAppType(t *testing.T) {
	cases := map[string]AppType{
		"a todo list":               AppTodo,
		"personal blog with posts":  AppBlog,
		"online store with a cart":  AppEcommerce,
		"sales dashboard charts":    AppDashboard,
		"login and signup pages":    AppAuth,
		"restaurant booking system": AppBooking,
		"something unrecognizable":  AppCRUD,
	}
	for desc, want := range cases {
		assert.Equal(t, want, inferAppType(desc), "description %q", desc)
	}
}

func TestValidateRejectsUnknownAppType(t *testing.T) {
	m := DefaultManifest("X", "app")
	m.AppType = "spreadsheet"
	err := m.Validate()
	assert.True(t, errors.Is(err, faults.ErrSchemaInvalid))
}

func TestValidateRejectsEmptyFeatures(t *testing.T) {
	m := DefaultManifest("X", "app")
	m.Features = nil
	assert.True(t, errors.Is(m.Validate(), faults.ErrSchemaInvalid))
}

func TestValidateRejectsLowercaseModelName(t *testing.T) {
	m := DefaultManifest("X", "app")
	m.Models = append(m.Models, DataModel{Name: "item"})
	assert.True(t, errors.Is(m.Validate(), faults.ErrSchemaInvalid))
}

func TestValidateRejectsBadEndpointPath(t *testing.T) {
	m := DefaultManifest("X", "app")
	m.Endpoints = append(m.Endpoints, APIEndpoint{Method: "GET", Path: "items"})
	assert.True(t, errors.Is(m.Validate(), faults.ErrSchemaInvalid))
}

func TestValidateRejectsMissingRequiredFile(t *testing.T) {
	m := DefaultManifest("X", "app")
	var kept []FileSpec
	for _, f := range m.FilesToGenerate {
		if f.Path != "frontend/index.html" {
			kept = append(kept, f)
		}
	}
	m.FilesToGenerate = kept
	assert.True(t, errors.Is(m.Validate(), faults.ErrSchemaInvalid))
}

func TestValidateRejectsUnknownRole(t *testing.T) {
	m := DefaultManifest("X", "app")
	m.AgentsNeeded = append(m.AgentsNeeded, AgentRole("WIZARD"))
	assert.True(t, errors.Is(m.Validate(), faults.ErrSchemaInvalid))
}
