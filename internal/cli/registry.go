package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mithrel/cigmint/internal/layers"
	"github.com/mithrel/cigmint/internal/present"
	"github.com/mithrel/cigmint/internal/present/format"
	"github.com/mithrel/cigmint/internal/remote"
	"github.com/mithrel/cigmint/pkg/api"
)

func registryActor(cmd *cobra.Command) (*remote.RegistryActor, error) {
	app := getApp(cmd)
	id, err := authenticate(cmd, app)
	if err != nil {
		return nil, err
	}
	return remote.CreateRegistryActor(app.Remote, app.Cfg.GetString("canisters.registry"), id), nil
}

func newCollectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Manage collections in the registry",
	}
	cmd.AddCommand(newCollectionCreateCmd())
	return cmd
}

func newCollectionCreateCmd() *cobra.Command {
	var req api.CollectionRequest
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Register a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := outputOptions(cmd)
			if err != nil {
				return err
			}
			req.Name = args[0]
			reg, err := registryActor(cmd)
			if err != nil {
				return err
			}
			col, err := reg.CreateCollection(cmd.Context(), req)
			if err != nil {
				return err
			}
			return present.RenderValue(cmd.OutOrStdout(), col, opts)
		},
	}
	cmd.Flags().StringVar(&req.Symbol, "symbol", "", "ticker symbol")
	cmd.Flags().StringVar(&req.Description, "description", "", "collection description")
	cmd.Flags().IntVar(&req.Supply, "supply", 0, "maximum supply (0 for unbounded)")
	cmd.Flags().String("remote", "", "replica url (default remote.url)")
	addOutputFlags(cmd)
	return cmd
}

func newAttributesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attributes",
		Short: "Manage collection attributes",
	}
	set := &cobra.Command{
		Use:   "set <collection> key=value...",
		Short: "Merge attributes into a collection",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs, err := parseAttributes(args[1:])
			if err != nil {
				return err
			}
			reg, err := registryActor(cmd)
			if err != nil {
				return err
			}
			out, err := reg.SetAttributes(cmd.Context(), args[0], attrs)
			if err != nil {
				return err
			}
			return format.WritePlainMap(cmd.OutOrStdout(), out.Attributes)
		},
	}
	set.Flags().String("remote", "", "replica url (default remote.url)")
	cmd.AddCommand(set)
	return cmd
}

func parseAttributes(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("attribute %q must be key=value", p)
		}
		out[k] = v
	}
	return out, nil
}

func newLayerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layer",
		Short: "Register layers in the registry",
	}
	var file, name string
	add := &cobra.Command{
		Use:   "add <number>",
		Short: "Register one layer of a layer file at a position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.Atoi(args[0])
			if err != nil || number < 0 {
				return fmt.Errorf("layer number must be a non-negative integer, got %q", args[0])
			}
			f, err := layers.Load(file)
			if err != nil {
				return err
			}
			layer, err := pickLayer(f, name)
			if err != nil {
				return err
			}
			reg, err := registryActor(cmd)
			if err != nil {
				return err
			}
			rec, err := reg.AddLayer(cmd.Context(), number, layer)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "layer %d: %s (%d options)\n", rec.Number, rec.Layer.Name, len(rec.Layer.Options))
			return nil
		},
	}
	add.Flags().StringVar(&file, "file", "", "layer file (YAML or JSON)")
	add.Flags().StringVar(&name, "name", "", "layer to register when the file holds several")
	add.Flags().String("remote", "", "replica url (default remote.url)")
	_ = add.MarkFlagRequired("file")
	cmd.AddCommand(add)
	return cmd
}

func pickLayer(f layers.File, name string) (api.Layer, error) {
	if name == "" {
		if len(f.Layers) != 1 {
			return api.Layer{}, fmt.Errorf("file holds %d layers; choose one with --name", len(f.Layers))
		}
		return f.Layers[0], nil
	}
	for _, l := range f.Layers {
		if l.Name == name {
			return l, nil
		}
	}
	return api.Layer{}, fmt.Errorf("no layer named %q", name)
}
