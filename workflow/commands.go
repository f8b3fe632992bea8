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

// package workflow turns a built dependency graph into command lines for the
// third-party pipeline tools, and hands the result to the scipipe workflow
// engine for scheduling and execution.

package workflow

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/wtsi-hgi/cutrun-automation/graph"
	"github.com/wtsi-hgi/cutrun-automation/stages"
)

// Defaults for the stage tunables, usually fine for CUT&RUN libraries
// prepared with standard Illumina adapters.
const (
	DefaultAdapter1      = "AGATCGGAAGAGC"
	DefaultAdapter2      = "AGATCGGAAGAGC"
	DefaultMinLength     = 20
	DefaultQualityCutoff = 20
	DefaultPeakFormat    = "BAMPE"
)

type Error string

func (e Error) Error() string { return string(e) }

const ErrUnknownStage = Error("instance has a stage with no command template")

// Commands renders the opaque external command line of each stage instance.
// Input and output file arguments are emitted as {i:port} and {o:port}
// placeholders for the executor to resolve, so that it can substitute
// temporary output paths and only move outputs into place once an instance's
// process has exited successfully with all outputs produced.
//
// All parameters are required, but using New() will default the tunables to
// usually fixed values.
type Commands struct {
	// Required parameters
	GenomeIndex string
	GenomeSize  string
	Planner     stages.Planner

	// Optional parameters
	Adapter1      string
	Adapter2      string
	MinLength     int
	QualityCutoff int
	PeakFormat    string
}

// New creates a new Commands with default values for the tunables.
func New(genomeIndex, genomeSize string, planner stages.Planner) Commands {
	return Commands{
		GenomeIndex: genomeIndex,
		GenomeSize:  genomeSize,
		Planner:     planner,

		Adapter1:      DefaultAdapter1,
		Adapter2:      DefaultAdapter2,
		MinLength:     DefaultMinLength,
		QualityCutoff: DefaultQualityCutoff,
		PeakFormat:    DefaultPeakFormat,
	}
}

// Command generates the command line for the given stage instance. Each
// command redirects the tool's output to the instance's own log path.
//
// The executor runs each command inside its own temporary directory one
// level below the launch directory, so any path that appears literally in a
// command, rather than through a placeholder, goes through hostPath() to
// remain resolvable from there.
func (c Commands) Command(inst *graph.Instance) (string, error) {
	switch inst.Stage {
	case stages.QualityControl:
		return c.qcCommand(inst), nil
	case stages.Trimming:
		return c.trimCommand(inst), nil
	case stages.Alignment:
		return c.alignCommand(inst), nil
	case stages.PeakCalling:
		return c.peakCommand(inst), nil
	case stages.Aggregation:
		return c.aggregationCommand(inst), nil
	default:
		return "", ErrUnknownStage
	}
}

// hostPath makes a literal path usable from inside the executor's temporary
// working directory, which sits one level below the launch directory: a
// relative path gets a ../ prefix to reach the real tree, while an absolute
// path resolves anywhere and is returned as is.
func hostPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return "../" + path
}

func (c Commands) logPath(inst *graph.Instance) string {
	return hostPath(c.Planner.LogPath(inst.Stage, inst.SampleID))
}

// qcCommand writes the fastqc reports straight into the real quality-control
// directory, where the aggregation stage will find them; only the completion
// flag goes through the executor's placeholder.
func (c Commands) qcCommand(inst *graph.Instance) string {
	return fmt.Sprintf(
		"fastqc --quiet --threads %d --outdir %s {i:%s} {i:%s} > %s 2>&1 && echo fastqc_done > {o:%s}",
		inst.Threads, hostPath(c.Planner.Dir(stages.QualityControl)),
		graph.PortReads1, graph.PortReads2,
		c.logPath(inst), graph.PortDone)
}

func (c Commands) trimCommand(inst *graph.Instance) string {
	return fmt.Sprintf(
		"cutadapt --cores %d -a %s -A %s --minimum-length %d -q %d "+
			"-o {o:%s} -p {o:%s} {i:%s} {i:%s} > %s 2>&1",
		inst.Threads, c.Adapter1, c.Adapter2, c.MinLength, c.QualityCutoff,
		graph.PortTrimmed1, graph.PortTrimmed2,
		graph.PortReads1, graph.PortReads2,
		c.logPath(inst))
}

func (c Commands) alignCommand(inst *graph.Instance) string {
	return fmt.Sprintf(
		"bowtie2 --threads %d -x %s -1 {i:%s} -2 {i:%s} 2> %s "+
			"| samtools sort -@ %d -o {o:%s} - && samtools index {o:%s} {o:%s}",
		inst.Threads, hostPath(c.GenomeIndex),
		graph.PortTrimmed1, graph.PortTrimmed2,
		c.logPath(inst),
		inst.Threads, graph.PortBam, graph.PortBam, graph.PortBai)
}

// peakCommand calls peaks for one treatment sample against the fixed
// control. macs2 names its outputs itself under --outdir, so --outdir is
// derived from the executor's placeholder for the declared narrowPeak: with
// -n set to the sample ID, macs2 then produces the narrowPeak at exactly the
// placeholder path, and the executor finalizes it atomically. The other macs2
// side files are left behind in the executor's temporary directory.
func (c Commands) peakCommand(inst *graph.Instance) string {
	return fmt.Sprintf(
		"macs2 callpeak -t {i:%s} -c {i:%s} -f %s -g %s -n %s "+
			"--outdir $(o={o:%s}; echo ${o%%/*}) > %s 2>&1",
		graph.PortTreatment, graph.PortControl,
		c.PeakFormat, c.GenomeSize, inst.SampleID,
		graph.PortPeaks, c.logPath(inst))
}

// aggregationCommand runs multiqc over the whole output tree. Its real
// dependencies are every sample's quality-control and alignment outputs;
// those ports only need mentioning, so they go in a trailing comment.
func (c Commands) aggregationCommand(inst *graph.Instance) string {
	deps := make([]string, len(inst.Inputs))
	for n, in := range inst.Inputs {
		deps[n] = fmt.Sprintf("{i:%s}", in.Port)
	}

	return fmt.Sprintf(
		"multiqc --force --outdir $(o={o:%s}; echo ${o%%/multiqc_report.html}) %s > %s 2>&1 # deps: %s",
		graph.PortReport, hostPath(c.Planner.OutputRoot), c.logPath(inst),
		strings.Join(deps, " "))
}
