package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mithrel/cigmint/internal/config"
	"github.com/mithrel/cigmint/internal/present"
	"github.com/mithrel/cigmint/internal/present/format"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	cmd.AddCommand(newConfigGenerateCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

// configFile is --config when given, else the default config.toml.
func configFile(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p
	}
	return config.DefaultConfigPath()
}

func newConfigGenerateCmd() *cobra.Command {
	var out string
	var overwrite, update bool
	cmd := &cobra.Command{
		Use:         "generate",
		Short:       "Write a config.toml with every option and its default",
		Annotations: map[string]string{skipAppAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if overwrite && update {
				return fmt.Errorf("choose either --overwrite or --update")
			}
			if out == "" {
				out = configFile(cmd)
			}
			data, err := os.ReadFile(out)
			exists := err == nil
			if err != nil && !os.IsNotExist(err) {
				return err
			}
			if exists && !overwrite && !update {
				return fmt.Errorf("config already exists at %s; use --update to add new options or --overwrite to start over", out)
			}

			content := config.RenderDefaultTOML()
			if exists && update {
				updated, changed := config.UpdateTOML(string(data))
				if !changed {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "config up to date: %s\n", out)
					return nil
				}
				content = updated
			}
			if exists {
				backup, err := backupConfig(out, data)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "backup: %s\n", backup)
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o700); err != nil {
				return err
			}
			if err := os.WriteFile(out, []byte(content), 0o600); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "path to write (default: --config or the standard location)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing config (keeps a backup)")
	cmd.Flags().BoolVar(&update, "update", false, "add new options and comment out removed ones (keeps a backup)")
	return cmd
}

func newConfigSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set one option in the config file",
		Long: "Set one option in the config file. The file is only written when the\n" +
			"result is still a valid config.",
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{skipAppAnnotation: "true"},
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			keys := make([]string, 0)
			for _, o := range config.GetConfigOptions() {
				keys = append(keys, o.Key+"\t"+o.Comment)
			}
			return keys, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opt, ok := config.LookupOption(args[0])
			if !ok {
				return fmt.Errorf("unknown option %q", args[0])
			}
			value, err := opt.ParseValue(args[1])
			if err != nil {
				return err
			}
			path := configFile(cmd)
			if err := config.WriteOption(path, opt.Key, value); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s set in %s\n", opt.Key, path)
			return nil
		},
	}
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			opts, err := outputOptions(cmd)
			if err != nil {
				return err
			}
			values := make(map[string]string)
			for _, o := range config.GetConfigOptions() {
				values[o.Key] = app.Cfg.GetString(o.Key)
			}
			if values["auth.seed"] != "" {
				values["auth.seed"] = "(set)"
			}
			if opts.Mode == present.ModeJSON || opts.Mode == present.ModeNDJSON {
				return present.RenderValue(cmd.OutOrStdout(), values, opts)
			}
			if opts.Headers {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", sourceOf(app.Cfg.ConfigFileUsed()))
			}
			return format.WritePlainMap(cmd.OutOrStdout(), values)
		},
	}
	addOutputFlags(cmd)
	return cmd
}

func sourceOf(path string) string {
	if path == "" {
		return "defaults and environment (no config file)"
	}
	if _, err := os.Stat(path); err != nil {
		return path + " (missing, defaults and environment)"
	}
	return path
}

func backupConfig(path string, data []byte) (string, error) {
	backup := path + ".bak"
	if _, err := os.Stat(backup); err == nil {
		backup = fmt.Sprintf("%s.bak-%s", path, time.Now().Format("20060102-150405"))
	}
	if err := os.WriteFile(backup, data, 0o600); err != nil {
		return "", err
	}
	return backup, nil
}
