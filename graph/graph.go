/*******************************************************************************
 * Copyright (c) 2025 Genome Research Ltd.
 *
 * Author: Sendu Bala <sb10@sanger.ac.uk>
 *
 * Permission is hereby granted, free of charge, to any person obtaining
 * a copy of this software and associated documentation files (the
 * "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish,
 * distribute, sublicense, and/or sell copies of the Software, and to
 * permit persons to whom the Software is furnished to do so, subject to
 * the following conditions:
 *
 * The above copyright notice and this permission notice shall be included
 * in all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
 * EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
 * MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
 * CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
 * TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 ******************************************************************************/

// package graph builds the directed acyclic graph of per-sample stage
// instances that an external workflow engine then schedules and runs.

package graph

import (
	"os"
	"time"

	"github.com/wtsi-hgi/cutrun-automation/samples"
	"github.com/wtsi-hgi/cutrun-automation/stages"
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrControlNotRegistered = Error("control sample was not found in any group directory")
	ErrCycle                = Error("dependency graph contains a cycle")
)

// Port names shared between the graph builder and whatever renders each
// instance's command. Aggregation ports are derived per sample with
// AggQCPort and AggAlignmentPort.
const (
	PortReads1    = "reads1"
	PortReads2    = "reads2"
	PortTrimmed1  = "trimmed1"
	PortTrimmed2  = "trimmed2"
	PortTreatment = "treatment"
	PortControl   = "control"
	PortDone      = "done"
	PortBam       = "bam"
	PortBai       = "bai"
	PortPeaks     = "peaks"
	PortReport    = "report"
)

// AggregationID is the pseudo sample identifier of the single aggregation
// instance.
const AggregationID = "all"

// Input is one named input of a StageInstance: either a raw sample file
// (Producer nil) or a declared output of a prerequisite instance, in which
// case Path equals the producer's output path for ProducerPort.
type Input struct {
	Port         string
	Path         string
	Producer     *Instance
	ProducerPort string
}

// Output is one declared output of a StageInstance.
type Output struct {
	Port string
	Path string
}

// Instance is a Stage applied to one sample: the DAG node handed to the
// executor together with an opaque command.
type Instance struct {
	Stage    stages.Stage
	SampleID string
	Inputs   []Input
	Outputs  []Output
	Threads  int
}

// Name returns the unique name of this instance.
func (i *Instance) Name() string {
	return string(i.Stage) + "_" + i.SampleID
}

// Output returns the path declared for the given output port.
func (i *Instance) Output(port string) (string, bool) {
	for _, out := range i.Outputs {
		if out.Port == port {
			return out.Path, true
		}
	}

	return "", false
}

// Prerequisites returns the distinct instances this instance depends on.
func (i *Instance) Prerequisites() []*Instance {
	var result []*Instance

	seen := make(map[*Instance]bool)

	for _, in := range i.Inputs {
		if in.Producer == nil || seen[in.Producer] {
			continue
		}

		seen[in.Producer] = true

		result = append(result, in.Producer)
	}

	return result
}

// UpToDate reports whether every declared output of this instance exists and
// is strictly newer than all of its inputs, ie. whether an executor applying
// the usual skip rule would not re-run it. An input as new as an output
// means the output may predate it, so that counts as stale. A missing input
// makes the instance not up to date (it would fail at execution time
// instead).
func (i *Instance) UpToDate() bool {
	var oldestOutput time.Time

	for n, out := range i.Outputs {
		info, err := os.Stat(out.Path)
		if err != nil {
			return false
		}

		if n == 0 || info.ModTime().Before(oldestOutput) {
			oldestOutput = info.ModTime()
		}
	}

	for _, in := range i.Inputs {
		info, err := os.Stat(in.Path)
		if err != nil {
			return false
		}

		if !info.ModTime().Before(oldestOutput) {
			return false
		}
	}

	return true
}

// Options configure Build.
type Options struct {
	// ControlID is the sample identifier of the fixed peak-calling control.
	// The control is processed like any other sample up to alignment, but is
	// never a peak-calling treatment.
	ControlID string
}

// Graph is the set of stage instances for one pipeline run, with
// prerequisite edges recorded on each instance's inputs.
type Graph struct {
	instances []*Instance
}

// Build constructs a StageInstance for every sample and every stage
// applicable to it:
//
//	quality-control and trimming consume the sample's raw read pair;
//	alignment consumes the sample's trimmed pair;
//	peak-calling consumes the sample's alignment and the control sample's
//	alignment, and is not built for the control sample itself;
//	aggregation consumes the quality-control and alignment outputs of every
//	sample in the run.
//
// An empty registry yields an empty graph. A non-empty registry without the
// control sample is a fatal configuration error, detected here, before
// anything runs.
func Build(r *samples.Registry, p stages.Planner, opts Options) (*Graph, error) {
	g := &Graph{}

	all := r.Samples()
	if len(all) == 0 {
		return g, nil
	}

	if _, err := r.Lookup(opts.ControlID); err != nil {
		return nil, ErrControlNotRegistered
	}

	alignments := make(map[string]*Instance, len(all))
	agg := &Instance{
		Stage:    stages.Aggregation,
		SampleID: AggregationID,
		Outputs:  []Output{{Port: PortReport, Path: p.Report()}},
		Threads:  stages.Aggregation.Threads(),
	}

	for _, sample := range all {
		qc, align := g.addSampleInstances(sample, p)
		alignments[sample.ID] = align

		agg.Inputs = append(agg.Inputs,
			producedInput(AggQCPort(sample.ID), qc, PortDone),
			producedInput(AggAlignmentPort(sample.ID), align, PortBam))
	}

	controlAlign := alignments[opts.ControlID]

	for _, sample := range all {
		if sample.ID == opts.ControlID {
			continue
		}

		g.add(&Instance{
			Stage:    stages.PeakCalling,
			SampleID: sample.ID,
			Inputs: []Input{
				producedInput(PortTreatment, alignments[sample.ID], PortBam),
				producedInput(PortControl, controlAlign, PortBam),
			},
			Outputs: []Output{{Port: PortPeaks, Path: p.Peaks(sample.ID)}},
			Threads: stages.PeakCalling.Threads(),
		})
	}

	g.add(agg)

	return g, nil
}

func (g *Graph) addSampleInstances(sample samples.Sample, p stages.Planner) (*Instance, *Instance) {
	rawInputs := []Input{
		{Port: PortReads1, Path: sample.Read1},
		{Port: PortReads2, Path: sample.Read2},
	}

	qc := &Instance{
		Stage:    stages.QualityControl,
		SampleID: sample.ID,
		Inputs:   rawInputs,
		Outputs:  []Output{{Port: PortDone, Path: p.QCDone(sample.ID)}},
		Threads:  stages.QualityControl.Threads(),
	}

	trimmed1, trimmed2 := p.Trimmed(sample.ID)
	trim := &Instance{
		Stage:    stages.Trimming,
		SampleID: sample.ID,
		Inputs:   rawInputs,
		Outputs: []Output{
			{Port: PortTrimmed1, Path: trimmed1},
			{Port: PortTrimmed2, Path: trimmed2},
		},
		Threads: stages.Trimming.Threads(),
	}

	bam, bai := p.Alignment(sample.ID)
	align := &Instance{
		Stage:    stages.Alignment,
		SampleID: sample.ID,
		Inputs: []Input{
			producedInput(PortTrimmed1, trim, PortTrimmed1),
			producedInput(PortTrimmed2, trim, PortTrimmed2),
		},
		Outputs: []Output{
			{Port: PortBam, Path: bam},
			{Port: PortBai, Path: bai},
		},
		Threads: stages.Alignment.Threads(),
	}

	g.add(qc, trim, align)

	return qc, align
}

func producedInput(port string, producer *Instance, producerPort string) Input {
	path, _ := producer.Output(producerPort)

	return Input{
		Port:         port,
		Path:         path,
		Producer:     producer,
		ProducerPort: producerPort,
	}
}

// AggQCPort returns the aggregation instance's input port name for a sample's
// quality-control output.
func AggQCPort(sampleID string) string {
	return "qc_" + sampleID
}

// AggAlignmentPort returns the aggregation instance's input port name for a
// sample's alignment output.
func AggAlignmentPort(sampleID string) string {
	return "aln_" + sampleID
}

func (g *Graph) add(instances ...*Instance) {
	g.instances = append(g.instances, instances...)
}

// Len returns the number of instances in the graph.
func (g *Graph) Len() int {
	return len(g.instances)
}

// Instances returns all instances in insertion order: per-sample stages
// first (samples sorted by ID), then peak calling, then aggregation.
func (g *Graph) Instances() []*Instance {
	result := make([]*Instance, len(g.instances))
	copy(result, g.instances)

	return result
}

// Instance returns the instance for the given stage and sample, if present.
func (g *Graph) Instance(stage stages.Stage, sampleID string) (*Instance, bool) {
	for _, inst := range g.instances {
		if inst.Stage == stage && inst.SampleID == sampleID {
			return inst, true
		}
	}

	return nil, false
}

// Sorted returns the instances in a deterministic topological order, such
// that every instance appears after all of its prerequisites. Returns
// ErrCycle if the graph is not acyclic; a graph built by Build never is,
// since stage order is fixed and linear per sample with aggregation terminal,
// but the property is verified rather than assumed.
func (g *Graph) Sorted() ([]*Instance, error) {
	remaining := make(map[*Instance]int, len(g.instances))

	dependents := make(map[*Instance][]*Instance, len(g.instances))

	for _, inst := range g.instances {
		prereqs := inst.Prerequisites()
		remaining[inst] = len(prereqs)

		for _, prereq := range prereqs {
			dependents[prereq] = append(dependents[prereq], inst)
		}
	}

	result := make([]*Instance, 0, len(g.instances))

	for {
		progressed := false

		for _, inst := range g.instances {
			if n, ok := remaining[inst]; !ok || n != 0 {
				continue
			}

			delete(remaining, inst)

			result = append(result, inst)

			for _, dependent := range dependents[inst] {
				remaining[dependent]--
			}

			progressed = true
		}

		if !progressed {
			break
		}
	}

	if len(remaining) != 0 {
		return nil, ErrCycle
	}

	return result, nil
}
