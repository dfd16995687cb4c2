// pattern: Imperative Shell

package config

import (
	"os"
	"path/filepath"
	"sort"
)

const (
	templateManifest = "compose.yml.tmpl"
	templateEnv      = "env.tmpl"
)

// Template is a user supplied new-stack template. A template is a
// directory under <config>/templates holding compose.yml.tmpl and,
// optionally, env.tmpl.
type Template struct {
	Name string
	Path string
}

// Files reads the manifest and env sources of the template. A missing
// env.tmpl yields an empty env source.
func (t Template) Files() (manifest, env string, err error) {
	data, err := os.ReadFile(filepath.Join(t.Path, templateManifest))
	if err != nil {
		return "", "", err
	}
	envData, err := os.ReadFile(filepath.Join(t.Path, templateEnv))
	if err != nil && !os.IsNotExist(err) {
		return "", "", err
	}
	return string(data), string(envData), nil
}

// LoadTemplates scans <configDir>/templates.
func LoadTemplates(configDir string) ([]Template, error) {
	return LoadTemplatesFrom(filepath.Join(Dir(configDir), "templates"))
}

// LoadTemplatesFrom returns every subdirectory of dir that carries a
// compose.yml.tmpl, sorted by name. A missing dir is not an error.
func LoadTemplatesFrom(dir string) ([]Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Template{}, nil
		}
		return nil, err
	}

	templates := []Template{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(filepath.Join(path, templateManifest)); err != nil {
			continue
		}
		templates = append(templates, Template{Name: entry.Name(), Path: path})
	}

	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	return templates, nil
}

// FindTemplate returns the template called name.
func FindTemplate(templates []Template, name string) (Template, bool) {
	for _, t := range templates {
		if t.Name == name {
			return t, true
		}
	}
	return Template{}, false
}
