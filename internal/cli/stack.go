// pattern: Imperative Shell
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	flag "github.com/spf13/pflag"

	"bunshinctl/internal/api"
	"bunshinctl/internal/config"
	"bunshinctl/internal/stack"
)

// RegisterStackCommands registers the stack command group commands.
func RegisterStackCommands(group *Group, opts Options) {
	group.AddCommand(&Command{
		Name:    "list",
		Summary: "List stack names",
		Usage:   "Usage: bunshinctl stack list",
		Run: func(args []string) error {
			opts.delegate().Run(func(ctx context.Context, client *api.Client) error {
				names, err := client.ListStacks(ctx)
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(opts.Stdout, name)
				}
				return nil
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "get",
		Summary: "Print a stack definition as JSON",
		Usage:   "Usage: bunshinctl stack get <name>",
		Run: func(args []string) error {
			if len(args) != 1 {
				return errors.New("usage: bunshinctl stack get <name>")
			}
			opts.delegate().Run(func(ctx context.Context, client *api.Client) error {
				def, err := client.GetStack(ctx, args[0])
				if err != nil {
					return err
				}
				return PrintJSON(opts.Stdout, def)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "save",
		Summary: "Save a definition from local files",
		Usage:   "Usage: bunshinctl stack save <name> --yaml file [--env file]",
		Run: func(args []string) error {
			name, files, err := parseDefinitionArgs("save", args)
			if err != nil {
				return err
			}
			def, err := files.read()
			if err != nil {
				return err
			}
			opts.delegate().Run(func(ctx context.Context, client *api.Client) error {
				if err := client.SaveStack(ctx, name, def); err != nil {
					return err
				}
				fmt.Fprintf(opts.Stdout, "Saved %s.\n", name)
				return nil
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "new",
		Summary: "Create a stack from a template",
		Usage:   "Usage: bunshinctl stack new <name> [--template name]",
		Run: func(args []string) error {
			fs := flag.NewFlagSet("stack new", flag.ContinueOnError)
			fs.SetOutput(io.Discard)
			tmplName := fs.StringP("template", "t", "", "template under <config>/templates")
			if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
				return errors.New("usage: bunshinctl stack new <name> [--template name]")
			}
			name, err := stack.ValidateName(fs.Arg(0))
			if err != nil {
				return err
			}
			def, err := templateDefinition(opts.ConfigDir, *tmplName, name)
			if err != nil {
				return err
			}
			opts.delegate().Run(func(ctx context.Context, client *api.Client) error {
				if err := client.SaveStack(ctx, name, def); err != nil {
					return err
				}
				fmt.Fprintf(opts.Stdout, "Created %s.\n", name)
				return nil
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "status",
		Summary: "Print the stack status",
		Usage:   "Usage: bunshinctl stack status <name>",
		Run: func(args []string) error {
			if len(args) != 1 {
				return errors.New("usage: bunshinctl stack status <name>")
			}
			opts.delegate().Run(func(ctx context.Context, client *api.Client) error {
				st, err := client.Status(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(opts.Stdout, st)
				return nil
			})
			return nil
		},
	})

	for _, action := range []api.Action{api.ActionStart, api.ActionStop, api.ActionUpdate} {
		group.AddCommand(actionCommand(opts, action))
	}

	group.AddCommand(&Command{
		Name:    "toggle",
		Summary: "Stop a running stack or start a stopped one",
		Usage:   "Usage: bunshinctl stack toggle <name>",
		Run: func(args []string) error {
			if len(args) != 1 {
				return errors.New("usage: bunshinctl stack toggle <name>")
			}
			opts.delegate().Run(func(ctx context.Context, client *api.Client) error {
				st, err := client.Status(ctx, args[0])
				if err != nil {
					return err
				}
				action := stack.ToggleAction(st)
				if err := client.Action(ctx, args[0], action); err != nil {
					return err
				}
				fmt.Fprintln(opts.Stdout, actionDone(action, args[0]))
				return nil
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "containers",
		Summary: "List the containers of a stack",
		Usage:   "Usage: bunshinctl stack containers <name>",
		Run: func(args []string) error {
			if len(args) != 1 {
				return errors.New("usage: bunshinctl stack containers <name>")
			}
			opts.delegate().Run(func(ctx context.Context, client *api.Client) error {
				list, err := client.Containers(ctx, args[0])
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(opts.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME")
				for _, c := range list {
					fmt.Fprintf(tw, "%s\t%s\n", c.ShortID(), c.Name)
				}
				return tw.Flush()
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "check",
		Summary: "Validate a definition locally",
		Usage:   "Usage: bunshinctl stack check <name> [--yaml file [--env file]]",
		Run: func(args []string) error {
			name, files, err := parseDefinitionArgs("check", args)
			if err != nil && !errors.Is(err, errNoYAML) {
				return err
			}
			report := func(def api.Definition) error {
				r, err := stack.Check(context.Background(), name, def)
				if err != nil {
					return err
				}
				fmt.Fprintln(opts.Stdout, r.String())
				return nil
			}
			if files.yaml != "" {
				def, err := files.read()
				if err != nil {
					return err
				}
				if err := report(def); err != nil {
					opts.delegate().Fail(err)
				}
				return nil
			}
			opts.delegate().Run(func(ctx context.Context, client *api.Client) error {
				def, err := client.GetStack(ctx, name)
				if err != nil {
					return err
				}
				return report(def)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "push",
		Summary: "Save local files, optionally on every change",
		Usage:   "Usage: bunshinctl stack push <name> --yaml file [--env file] [--watch] [--debounce 300ms]",
		Run: func(args []string) error {
			fs := flag.NewFlagSet("stack push", flag.ContinueOnError)
			fs.SetOutput(io.Discard)
			yamlPath := fs.String("yaml", "", "compose manifest")
			envPath := fs.String("env", "", "env file")
			watch := fs.BoolP("watch", "w", false, "re-save whenever a file changes")
			debounce := fs.Duration("debounce", DefaultDebounce, "quiet period before saving")
			if err := fs.Parse(args); err != nil || fs.NArg() != 1 || *yamlPath == "" {
				return errors.New("usage: bunshinctl stack push <name> --yaml file [--env file] [--watch]")
			}

			d := opts.delegate()
			client := d.Client()
			if client == nil {
				return nil
			}

			cfg := PushConfig{
				Name:     fs.Arg(0),
				YAMLPath: *yamlPath,
				EnvPath:  *envPath,
				Debounce: *debounce,
				Save: func(ctx context.Context, def api.Definition) error {
					ctx, cancel := context.WithTimeout(ctx, d.Timeout)
					defer cancel()
					return client.SaveStack(ctx, fs.Arg(0), def)
				},
				Out: opts.Stdout,
				Log: opts.logger("cli"),
			}

			ctx, cancel := signalContext()
			defer cancel()

			push := PushOnce
			if *watch {
				push = WatchAndPush
			}
			if err := push(ctx, cfg); err != nil {
				d.Fail(err)
			}
			return nil
		},
	})
}

func actionCommand(opts Options, action api.Action) *Command {
	verb := string(action)
	return &Command{
		Name:    verb,
		Summary: fmt.Sprintf("Run the %s action", verb),
		Usage:   fmt.Sprintf("Usage: bunshinctl stack %s <name>", verb),
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: bunshinctl stack %s <name>", verb)
			}
			opts.delegate().Run(func(ctx context.Context, client *api.Client) error {
				if err := client.Action(ctx, args[0], action); err != nil {
					return err
				}
				fmt.Fprintln(opts.Stdout, actionDone(action, args[0]))
				return nil
			})
			return nil
		},
	}
}

func actionDone(action api.Action, name string) string {
	switch action {
	case api.ActionStart:
		return fmt.Sprintf("Started %s.", name)
	case api.ActionStop:
		return fmt.Sprintf("Stopped %s.", name)
	default:
		return fmt.Sprintf("Updated %s.", name)
	}
}

var errNoYAML = errors.New("--yaml is required")

// definitionFiles are the local sources of a definition.
type definitionFiles struct {
	yaml string
	env  string
}

func (f definitionFiles) read() (api.Definition, error) {
	data, err := os.ReadFile(f.yaml)
	if err != nil {
		return api.Definition{}, err
	}
	def := api.Definition{YAML: string(data)}
	if f.env != "" {
		env, err := os.ReadFile(f.env)
		if err != nil {
			return api.Definition{}, err
		}
		def.Env = string(env)
	}
	return def, nil
}

// parseDefinitionArgs parses "<name> --yaml f [--env f]". A missing --yaml
// is reported as errNoYAML with the name still returned.
func parseDefinitionArgs(cmd string, args []string) (string, definitionFiles, error) {
	fs := flag.NewFlagSet("stack "+cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	yamlPath := fs.String("yaml", "", "compose manifest")
	envPath := fs.String("env", "", "env file")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return "", definitionFiles{}, fmt.Errorf("usage: bunshinctl stack %s <name> --yaml file [--env file]", cmd)
	}
	files := definitionFiles{yaml: *yamlPath, env: *envPath}
	if files.yaml == "" {
		return fs.Arg(0), files, errNoYAML
	}
	return fs.Arg(0), files, nil
}

// templateDefinition renders the named template, or the built-in one when
// tmplName is empty.
func templateDefinition(configDir, tmplName, name string) (api.Definition, error) {
	if tmplName == "" {
		return stack.NewTemplate(name), nil
	}
	templates, err := config.LoadTemplates(configDir)
	if err != nil {
		return api.Definition{}, err
	}
	tmpl, ok := config.FindTemplate(templates, tmplName)
	if !ok {
		return api.Definition{}, fmt.Errorf("template %q not found", tmplName)
	}
	manifest, env, err := tmpl.Files()
	if err != nil {
		return api.Definition{}, err
	}
	return stack.FromTemplate(name, manifest, env)
}

// pushTimestamp is the clock used in push output.
var pushTimestamp = func() string { return time.Now().Format("15:04:05") }
