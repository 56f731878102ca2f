package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bloomstate/internal/lattice"
)

type kindReport struct {
	Name      string   `json:"name"`
	Morphisms []string `json:"morphisms"`
	OrdMaps   []string `json:"ord_maps"`
	Methods   []string `json:"methods"`
}

func newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the builtin lattice kinds and their monotone operations",
		Args:  cobra.NoArgs,
		RunE:  runKinds,
	}
}

func runKinds(cmd *cobra.Command, args []string) error {
	catalog, err := lattice.NewCatalog(
		lattice.WithBuiltins(),
		lattice.WithLogger(current.log),
	)
	if err != nil {
		return exitError(exitSysError, fmt.Errorf("create catalog: %w", err))
	}
	defer catalog.Close()

	var kinds []kindReport
	for _, name := range catalog.Kinds() {
		k, ok := catalog.Lookup(name)
		if !ok {
			continue
		}
		kinds = append(kinds, kindReport{
			Name:      name,
			Morphisms: k.Morphisms(),
			OrdMaps:   k.OrdMaps(),
			Methods:   k.Methods(),
		})
	}

	if flags.jsonMode {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(kinds)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tMORPHISMS\tORD MAPS")
	for _, k := range kinds {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", k.Name, list(k.Morphisms), list(k.OrdMaps))
	}
	return tw.Flush()
}

func list(ops []string) string {
	if len(ops) == 0 {
		return "-"
	}
	return strings.Join(ops, ",")
}
