// pattern: Functional Core

package stack

import (
	"bytes"
	"fmt"
	"text/template"

	"bunshinctl/internal/api"
)

const defaultManifest = `version: '3.9'

services:
  app:
    image: nginx:latest
    container_name: %s_app
    restart: unless-stopped
    ports:
      - "80:80"
    environment:
      - PUID=${PUID}
      - PGID=${PGID}
    labels:
      - "bunshin.managed=true"`

const defaultEnv = `# Environment Variables
PUID=1000
PGID=1000`

// NewTemplate returns the definition a freshly created stack starts with.
// ${PUID} and ${PGID} are left for the backend to interpolate from the env
// file.
func NewTemplate(name string) api.Definition {
	return api.Definition{
		YAML: fmt.Sprintf(defaultManifest, name),
		Env:  defaultEnv,
	}
}

// templateData is what user templates can reference, e.g. {{ .Name }}.
type templateData struct {
	Name string
}

// FromTemplate renders a user template's manifest and env sources for the
// stack called name. Compose-style ${VAR} references pass through untouched.
func FromTemplate(name, manifest, env string) (api.Definition, error) {
	yml, err := render("manifest", manifest, name)
	if err != nil {
		return api.Definition{}, err
	}
	envOut, err := render("env", env, name)
	if err != nil {
		return api.Definition{}, err
	}
	return api.Definition{YAML: yml, Env: envOut}, nil
}

func render(label, src, name string) (string, error) {
	tmpl, err := template.New(label).Option("missingkey=error").Parse(src)
	if err != nil {
		return "", fmt.Errorf("parse %s template: %w", label, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, templateData{Name: name}); err != nil {
		return "", fmt.Errorf("render %s template: %w", label, err)
	}
	return buf.String(), nil
}
