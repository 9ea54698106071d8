package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/sonata"
	"github.com/hupe1980/sonata/nodesets"
	"github.com/hupe1980/sonata/report"
	"github.com/hupe1980/sonata/selection"
)

const (
	kindNodes   = "nodes"
	kindEdges   = "edges"
	kindSoma    = "soma"
	kindElement = "element"
	kindSpikes  = "spikes"
)

func newPopulationsCmd(g *globalFlags) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "populations <file>",
		Short: "List the populations of a circuit or report file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := g.options(ctx)
			if err != nil {
				return err
			}
			return listPopulations(ctx, cmd.OutOrStdout(), kind, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", kindNodes, "file kind: nodes, edges, soma, element or spikes")
	return cmd
}

func listPopulations(ctx context.Context, out io.Writer, kind, file string, opts []sonata.Option) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	switch kind {
	case kindNodes:
		s, err := sonata.OpenNodeStorage(ctx, file, opts...)
		if err != nil {
			return err
		}
		defer s.Close()
		for _, name := range s.PopulationNames() {
			p, err := s.OpenPopulation(ctx, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%d nodes\t%d attributes\n", name, p.Size(), len(p.AttributeNames()))
		}
	case kindEdges:
		s, err := sonata.OpenEdgeStorage(ctx, file, opts...)
		if err != nil {
			return err
		}
		defer s.Close()
		for _, name := range s.PopulationNames() {
			p, err := s.OpenPopulation(ctx, name)
			if err != nil {
				return err
			}
			source, err := p.Source()
			if err != nil {
				return err
			}
			target, err := p.Target()
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%d edges\t%s -> %s\n", name, p.Size(), source, target)
		}
	case kindSoma, kindElement:
		// A soma report is an element report with one element per node.
		r, err := report.OpenElement(ctx, file, opts...)
		if err != nil {
			return err
		}
		defer r.Close()
		for _, name := range r.PopulationNames() {
			p, err := r.OpenPopulation(ctx, name)
			if err != nil {
				return err
			}
			start, stop, step := p.Times()
			fmt.Fprintf(tw, "%s\t%d nodes\t[%g, %g] step %g %s\n", name, len(p.NodeIDs()), start, stop, step, p.TimeUnits())
		}
	case kindSpikes:
		r, err := report.OpenSpikes(ctx, file, opts...)
		if err != nil {
			return err
		}
		defer r.Close()
		for _, name := range r.PopulationNames() {
			p, err := r.OpenPopulation(ctx, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%d spikes\t%s\n", name, p.Len(), p.Sorting())
		}
	default:
		return fmt.Errorf("unknown kind %q", kind)
	}
	return nil
}

func newNodeSetCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "nodeset <nodesets.json> <nodes file> <population> <name>",
		Short: "Print the node ids a node set selects in a population",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := g.options(ctx)
			if err != nil {
				return err
			}
			sets, err := nodesets.Load(ctx, args[0], opts...)
			if err != nil {
				return err
			}
			nodes, err := sonata.OpenNodeStorage(ctx, args[1], opts...)
			if err != nil {
				return err
			}
			defer nodes.Close()
			pop, err := nodes.OpenPopulation(ctx, args[2])
			if err != nil {
				return err
			}
			sel, err := sets.Materialize(ctx, args[3], pop)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d nodes %s\n", args[3], sel.FlatSize(), sel)
			return nil
		},
	}
}

type reportFlags struct {
	kind   string
	start  float64
	stop   float64
	stride uint64
	ids    []string
}

func (f *reportFlags) getOptions(cmd *cobra.Command) ([]report.GetOption, error) {
	var opts []report.GetOption
	if cmd.Flags().Changed("start") {
		opts = append(opts, report.WithStart(f.start))
	}
	if cmd.Flags().Changed("stop") {
		opts = append(opts, report.WithStop(f.stop))
	}
	if f.stride != 1 {
		opts = append(opts, report.WithStride(f.stride))
	}
	if cmd.Flags().Changed("ids") {
		sel, err := parseIDs(f.ids)
		if err != nil {
			return nil, err
		}
		opts = append(opts, report.WithIDs(sel))
	}
	return opts, nil
}

// parseIDs accepts single ids and inclusive ranges such as "3-7".
func parseIDs(values []string) (selection.Selection, error) {
	var ranges []selection.Range
	for _, v := range values {
		lo, hi, isRange := strings.Cut(v, "-")
		begin, err := strconv.ParseUint(strings.TrimSpace(lo), 10, 64)
		if err != nil {
			return selection.Selection{}, fmt.Errorf("--ids %q: %w", v, err)
		}
		end := begin
		if isRange {
			if end, err = strconv.ParseUint(strings.TrimSpace(hi), 10, 64); err != nil {
				return selection.Selection{}, fmt.Errorf("--ids %q: %w", v, err)
			}
		}
		if end < begin {
			return selection.Selection{}, fmt.Errorf("--ids %q: empty range", v)
		}
		ranges = append(ranges, selection.Range{Begin: begin, End: end + 1})
	}
	return selection.New(ranges...)
}

func newReportCmd(g *globalFlags) *cobra.Command {
	f := &reportFlags{}
	cmd := &cobra.Command{
		Use:   "report <file> <population>",
		Short: "Read values or spikes from a report population",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := g.options(ctx)
			if err != nil {
				return err
			}
			getOpts, err := f.getOptions(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch f.kind {
			case kindSoma:
				return printFrame(ctx, out, args[0], args[1], report.OpenSoma, opts, getOpts)
			case kindElement:
				return printFrame(ctx, out, args[0], args[1], report.OpenElement, opts, getOpts)
			case kindSpikes:
				return printSpikes(ctx, out, args[0], args[1], opts, getOpts)
			default:
				return fmt.Errorf("unknown kind %q", f.kind)
			}
		},
	}
	cmd.Flags().StringVar(&f.kind, "kind", kindSoma, "report kind: soma, element or spikes")
	cmd.Flags().Float64Var(&f.start, "start", 0, "first time of the window")
	cmd.Flags().Float64Var(&f.stop, "stop", 0, "last time of the window")
	cmd.Flags().Uint64Var(&f.stride, "stride", 1, "read every n-th sample")
	cmd.Flags().StringSliceVar(&f.ids, "ids", nil, "node ids or ranges, e.g. 1,4-9")
	return cmd
}

func printFrame[K any](
	ctx context.Context,
	out io.Writer,
	file, name string,
	open func(context.Context, string, ...sonata.Option) (*report.Reader[*report.Population[K]], error),
	opts []sonata.Option,
	getOpts []report.GetOption,
) error {
	r, err := open(ctx, file, opts...)
	if err != nil {
		return err
	}
	defer r.Close()
	p, err := r.OpenPopulation(ctx, name)
	if err != nil {
		return err
	}
	frame, err := p.Get(ctx, getOpts...)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s: %d columns x %d samples (%s, %s)\n", name, len(frame.IDs), len(frame.Times), p.TimeUnits(), p.DataUnits())
	if frame.IsEmpty() {
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	defer tw.Flush()
	fmt.Fprint(tw, "time\t")
	for _, id := range frame.IDs {
		fmt.Fprintf(tw, "%v\t", id)
	}
	fmt.Fprintln(tw)
	for t, at := range frame.Times {
		fmt.Fprintf(tw, "%g\t", at)
		for i := range frame.IDs {
			fmt.Fprintf(tw, "%g\t", frame.At(t, i))
		}
		fmt.Fprintln(tw)
	}
	return nil
}

func printSpikes(ctx context.Context, out io.Writer, file, name string, opts []sonata.Option, getOpts []report.GetOption) error {
	r, err := report.OpenSpikes(ctx, file, opts...)
	if err != nil {
		return err
	}
	defer r.Close()
	p, err := r.OpenPopulation(ctx, name)
	if err != nil {
		return err
	}
	spikes, err := p.Get(ctx, getOpts...)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d spikes (%s, %s)\n", name, len(spikes), p.Sorting(), p.TimeUnits())
	for _, s := range spikes {
		fmt.Fprintf(out, "%d\t%g\n", s.NodeID, s.Time)
	}
	return nil
}
