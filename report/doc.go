// Package report reads simulation reports: compartment (element) and soma
// time series, and spike trains.
//
//	somas, err := report.OpenSoma(ctx, "soma.sonata")
//	if err != nil {
//	    return err
//	}
//	defer somas.Close()
//
//	pop, _ := somas.OpenPopulation(ctx, "cortex")
//	frame, _ := pop.Get(ctx,
//	    report.WithIDs(selection.FromIDs([]uint64{1, 5, 7})),
//	    report.WithTimeWindow(10, 20),
//	)
//	v := frame.At(0, 1) // first sample of node 5
//
// Frames are time-major: Data[t*len(IDs)+i] is the value of IDs[i] at
// Times[t]. The time window is inclusive on both ends with a tolerance of
// Epsilon.
//
// Spike reports load both columns on open and filter in memory:
//
//	spikes, _ := report.OpenSpikes(ctx, "spikes.sonata")
//	pop, _ := spikes.OpenPopulation(ctx, "cortex")
//	list, _ := pop.Get(ctx, report.WithStart(100))
package report
