// Package decl loads collection and lattice declarations from HCL files and
// replays them, in file order, into a state.Instance.
package decl

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/mesh-intelligence/bloomstate/internal/state"
	"github.com/mesh-intelligence/bloomstate/pkg/types"
)

// fileSchema lists the declaration blocks a file may contain.
var fileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "table", LabelNames: []string{"name"}},
		{Type: "scratch", LabelNames: []string{"name"}},
		{Type: "readonly", LabelNames: []string{"name"}},
		{Type: "temp", LabelNames: []string{"name"}},
		{Type: "channel", LabelNames: []string{"name"}},
		{Type: "loopback", LabelNames: []string{"name"}},
		{Type: "file_reader", LabelNames: []string{"name"}},
		{Type: "periodic", LabelNames: []string{"name"}},
		{Type: "terminal", LabelNames: []string{"name"}},
		{Type: "sync", LabelNames: []string{"name"}},
		{Type: "store", LabelNames: []string{"name"}},
		{Type: "interface", LabelNames: []string{"mode", "name"}},
		{Type: "lattice", LabelNames: []string{"kind", "name"}},
	},
}

type hclSchema struct {
	Key   *[]string `hcl:"key,optional"`
	Value *[]string `hcl:"value,optional"`
}

// schema returns nil when neither list is set, so the declaration default
// applies. A missing list takes the default for that side.
func (s hclSchema) schema() *types.Schema {
	if s.Key == nil && s.Value == nil {
		return nil
	}
	out := types.DefaultSchema()
	if s.Key != nil {
		out.Key = *s.Key
	}
	if s.Value != nil {
		out.Value = *s.Value
	}
	return &out
}

type hclChannel struct {
	Key      *[]string `hcl:"key,optional"`
	Value    *[]string `hcl:"value,optional"`
	Loopback bool      `hcl:"loopback,optional"`
}

type hclFileReader struct {
	Filename  string `hcl:"filename"`
	Delimiter string `hcl:"delimiter,optional"`
}

type hclPeriodic struct {
	Period *float64 `hcl:"period,optional"`
}

type hclTerminal struct{}

type hclSync struct {
	Backend string    `hcl:"backend"`
	Key     *[]string `hcl:"key,optional"`
	Value   *[]string `hcl:"value,optional"`
}

type hclStore struct {
	Backend string    `hcl:"backend"`
	Options cty.Value `hcl:"options,optional"`
}

type hclLattice struct {
	Scratch bool `hcl:"scratch,optional"`
}

// DefaultPeriod is used by periodic blocks without a period attribute.
const DefaultPeriod = time.Second

// LoadFile parses filename and replays its declarations into in. On error
// nothing from the file stays declared.
func LoadFile(in *state.Instance, filename string) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	return load(in, file)
}

// LoadSource parses src, reporting positions against filename, and replays
// its declarations into in.
func LoadSource(in *state.Instance, src []byte, filename string) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	return load(in, file)
}

// load replays every block or none: a failing block rolls the instance back
// to where it was before the file.
func load(in *state.Instance, file *hcl.File) error {
	content, diags := file.Body.Content(fileSchema)
	if diags.HasErrors() {
		return fmt.Errorf("failed to decode declarations: %w", diags)
	}
	cp := in.Checkpoint()
	for _, block := range content.Blocks {
		if err := declare(in, block); err != nil {
			in.Rollback(cp)
			return fmt.Errorf("%s: %s %q: %w", block.DefRange, block.Type, block.Labels[len(block.Labels)-1], err)
		}
	}
	return nil
}

func declare(in *state.Instance, block *hcl.Block) error {
	name := block.Labels[len(block.Labels)-1]

	switch block.Type {
	case "table", "scratch", "readonly", "temp":
		var s hclSchema
		if err := decode(block, &s); err != nil {
			return err
		}
		var err error
		switch block.Type {
		case "table":
			_, err = in.Table(name, s.schema())
		case "scratch":
			_, err = in.Scratch(name, s.schema())
		case "readonly":
			_, err = in.ReadOnly(name, s.schema())
		case "temp":
			_, err = in.Temp(name, s.schema())
		}
		return err

	case "channel", "loopback":
		var c hclChannel
		if err := decode(block, &c); err != nil {
			return err
		}
		s := hclSchema{Key: c.Key, Value: c.Value}.schema()
		if block.Type == "loopback" {
			_, err := in.Loopback(name, s)
			return err
		}
		_, err := in.Channel(name, s, c.Loopback)
		return err

	case "file_reader":
		var f hclFileReader
		if err := decode(block, &f); err != nil {
			return err
		}
		_, err := in.FileReader(name, f.Filename, f.Delimiter)
		return err

	case "periodic":
		var p hclPeriodic
		if err := decode(block, &p); err != nil {
			return err
		}
		period := DefaultPeriod
		if p.Period != nil {
			period = time.Duration(*p.Period * float64(time.Second))
		}
		_, err := in.Periodic(name, period)
		return err

	case "terminal":
		var t hclTerminal
		if err := decode(block, &t); err != nil {
			return err
		}
		_, err := in.Terminal(name)
		return err

	case "sync":
		var s hclSync
		if err := decode(block, &s); err != nil {
			return err
		}
		_, err := in.Sync(name, s.Backend, hclSchema{Key: s.Key, Value: s.Value}.schema())
		return err

	case "store":
		var s hclStore
		if err := decode(block, &s); err != nil {
			return err
		}
		opts, err := optionsFromCty(s.Options)
		if err != nil {
			return err
		}
		_, err = in.Store(name, s.Backend, opts)
		return err

	case "interface":
		mode, err := types.ParseAccessMode(block.Labels[0])
		if err != nil {
			return fmt.Errorf("%w: %q", err, block.Labels[0])
		}
		var s hclSchema
		if err := decode(block, &s); err != nil {
			return err
		}
		_, err = in.Interface(mode, name, s.schema())
		return err

	case "lattice":
		var l hclLattice
		if err := decode(block, &l); err != nil {
			return err
		}
		_, err := in.Lattice(block.Labels[0], name, state.LatticeOptions{Scratch: l.Scratch})
		return err
	}
	return fmt.Errorf("unsupported block type %q", block.Type)
}

func decode(block *hcl.Block, target any) error {
	if diags := gohcl.DecodeBody(block.Body, nil, target); diags.HasErrors() {
		return diags
	}
	return nil
}

// optionsFromCty converts a store options object into plain Go values:
// strings, float64 numbers, bools and lists of those.
func optionsFromCty(v cty.Value) (map[string]any, error) {
	out := map[string]any{}
	if v.IsNull() {
		return out, nil
	}
	if !v.IsKnown() {
		return nil, fmt.Errorf("%w: options must be known values", types.ErrInvalidOption)
	}
	ty := v.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("%w: options must be an object, got %s", types.ErrInvalidOption, ty.FriendlyName())
	}
	for it := v.ElementIterator(); it.Next(); {
		k, ev := it.Element()
		conv, err := ctyToGo(ev)
		if err != nil {
			return nil, fmt.Errorf("option %q: %w", k.AsString(), err)
		}
		out[k.AsString()] = conv
	}
	return out, nil
}

func ctyToGo(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return f, nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		var out []any
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			conv, err := ctyToGo(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, conv)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported value of type %s", types.ErrInvalidOption, ty.FriendlyName())
	}
}
