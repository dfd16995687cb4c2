// pattern: Imperative Shell

package stack

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/compose-spec/compose-go/v2/dotenv"
	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"

	"bunshinctl/internal/api"
)

// Report summarizes a definition as the compose loader sees it.
type Report struct {
	Services []string
	EnvKeys  []string
}

func (r Report) String() string {
	return fmt.Sprintf("%d service(s): %s; %d env var(s)", len(r.Services), strings.Join(r.Services, ", "), len(r.EnvKeys))
}

// ParseEnv parses an env file body with the same dotenv rules compose uses.
func ParseEnv(env string) (map[string]string, error) {
	if strings.TrimSpace(env) == "" {
		return map[string]string{}, nil
	}
	vars, err := dotenv.Parse(strings.NewReader(env))
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return vars, nil
}

// Check loads def the way the backend does when starting a stack and
// reports its services. The result is advisory: saving never depends on
// it and def is not modified.
func Check(ctx context.Context, name string, def api.Definition) (Report, error) {
	vars, err := ParseEnv(def.Env)
	if err != nil {
		return Report{}, err
	}

	project, err := loader.LoadWithContext(ctx, types.ConfigDetails{
		WorkingDir: ".",
		ConfigFiles: []types.ConfigFile{
			{Filename: name + ".yml", Content: []byte(def.YAML)},
		},
		Environment: types.Mapping(vars),
	}, func(opts *loader.Options) {
		opts.SetProjectName(loader.NormalizeProjectName(name), true)
		opts.SkipResolveEnvironment = true
	})
	if err != nil {
		return Report{}, fmt.Errorf("compose check: %w", err)
	}

	report := Report{Services: project.ServiceNames()}
	sort.Strings(report.Services)
	for k := range vars {
		report.EnvKeys = append(report.EnvKeys, k)
	}
	sort.Strings(report.EnvKeys)
	return report, nil
}
