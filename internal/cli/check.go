package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/bloomstate/internal/decl"
	"github.com/mesh-intelligence/bloomstate/internal/lattice"
	"github.com/mesh-intelligence/bloomstate/internal/state"
)

const advisoriesMetric = "bloom_lattice_advisories_total"

type collectionReport struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Persistence string `json:"persistence"`
	Schema      string `json:"schema"`
	Access      string `json:"access"`
}

type latticeReport struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Scratch bool   `json:"scratch"`
}

type checkReport struct {
	Instance    string             `json:"instance"`
	Files       []string           `json:"files"`
	Collections []collectionReport `json:"collections"`
	Lattices    []latticeReport    `json:"lattices"`
	Advisories  int                `json:"advisories"`
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE...",
		Short: "Load declaration files and report what they declare",
		Long: "Load each HCL declaration file into one fresh instance, in order, and\n" +
			"print the resulting collections and lattices. Any invalid declaration\n" +
			"fails the command.",
		Args: cobra.MinimumNArgs(1),
		RunE: runCheck,
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	reg := prometheus.NewRegistry()
	catalog, err := lattice.NewCatalog(
		lattice.WithBuiltins(),
		lattice.WithLogger(current.log),
		lattice.WithStrictCollisions(current.cfg.StrictCollisions),
		lattice.WithRegisterer(reg),
	)
	if err != nil {
		return exitError(exitSysError, fmt.Errorf("create catalog: %w", err))
	}
	defer catalog.Close()

	in := state.New(catalog,
		state.WithDataDir(current.dataDir),
		state.WithLogger(current.log))
	defer in.Close()

	for _, file := range args {
		if err := decl.LoadFile(in, file); err != nil {
			return exitError(exitUserError, err)
		}
		current.log.Debug("declarations loaded", zap.String("file", file))
	}

	report := buildReport(in, args)
	report.Advisories = countAdvisories(reg)

	if flags.jsonMode {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return printReport(cmd.OutOrStdout(), report)
}

func buildReport(in *state.Instance, files []string) checkReport {
	report := checkReport{
		Instance:    in.ID().String(),
		Files:       files,
		Collections: []collectionReport{},
		Lattices:    []latticeReport{},
	}
	for _, c := range in.Collections() {
		schema := "unresolved"
		if s, err := c.Schema(); err == nil {
			schema = s.String()
		}
		report.Collections = append(report.Collections, collectionReport{
			Name:        c.Name(),
			Kind:        c.Kind().String(),
			Persistence: c.Persistence().String(),
			Schema:      schema,
			Access:      c.Access().String(),
		})
	}
	for _, w := range in.Lattices() {
		report.Lattices = append(report.Lattices, latticeReport{
			Name:    w.Name(),
			Kind:    w.Kind().KindName(),
			Scratch: w.ResetsEachTick(),
		})
	}
	return report
}

// countAdvisories reads the catalog's advisory counter from reg.
func countAdvisories(reg *prometheus.Registry) int {
	families, err := reg.Gather()
	if err != nil {
		return 0
	}
	for _, mf := range families {
		if mf.GetName() != advisoriesMetric {
			continue
		}
		total := 0.0
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return int(total)
	}
	return 0
}

func printReport(w io.Writer, r checkReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tPERSISTENCE\tACCESS\tSCHEMA")
	for _, c := range r.Collections {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Name, c.Kind, c.Persistence, c.Access, c.Schema)
	}
	for _, l := range r.Lattices {
		persistence := "durable"
		if l.Scratch {
			persistence = "transient"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", l.Name, l.Kind, persistence, "internal", "-")
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d collections, %d lattices, %d advisories (%s)\n",
		len(r.Collections), len(r.Lattices), r.Advisories, strings.Join(r.Files, ", "))
	return nil
}
