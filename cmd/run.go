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

package cmd

import (
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/wtsi-hgi/cutrun-automation/config"
	"github.com/wtsi-hgi/cutrun-automation/graph"
	"github.com/wtsi-hgi/cutrun-automation/samples"
	"github.com/wtsi-hgi/cutrun-automation/stages"
	"github.com/wtsi-hgi/cutrun-automation/workflow"
)

const (
	dirPerm    = 0755
	outputFlag = "output"

	defaultOutputDir = "results"
)

// options for this cmd.
var (
	runOutput        string
	runCores         int
	runAdapter1      string
	runAdapter2      string
	runMinLength     int
	runQualityCutoff int
	runPlot          string
)

// runCmd represents the run command.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline on all discovered samples.",
	Long: `Run the pipeline on all discovered samples.

fastqc, cutadapt, bowtie2, samtools, macs2 and multiqc must be in your PATH.

Scans your configured experiment group directories, builds the dependency
graph of stage instances, and hands it to the workflow engine to execute.
Instances whose declared outputs already exist are skipped, independent
instances run in parallel within the --cores budget,
and each instance's tool output goes to its own log file under
<output>/logs/<stage>/.

Every sample, including the peak-calling control, is quality-controlled,
trimmed and aligned; peaks are then called for each non-control sample
against the control's alignment, and a multiqc report over the whole run is
produced last.

The run aborts, exiting non-zero, if any instance fails. Re-running after a
failure resumes from the first instance that is not up to date: outputs are
written to temporary paths and only moved into place on success, so a killed
or failed instance never leaves a partial output that the next run would
mistake for a completed one.

With --plot, the workflow graph is written to the given dot file and nothing
is executed.
`,
	Run: func(_ *cobra.Command, _ []string) {
		c, err := config.FromEnv()
		if err != nil {
			die(err)
		}

		registry, err := samples.Scan(c.GroupDirs)
		if err != nil {
			die(err)
		}

		if registry.Len() == 0 {
			info("no samples found in the configured group directories")

			return
		}

		warnMissingMates(registry)

		planner := stages.Planner{OutputRoot: runOutput}

		g, err := graph.Build(registry, planner, graph.Options{ControlID: c.ControlID})
		if err != nil {
			die(err)
		}

		cmds := workflow.New(c.GenomeIndex, c.GenomeSize, planner)
		cmds.Adapter1 = runAdapter1
		cmds.Adapter2 = runAdapter2
		cmds.MinLength = runMinLength
		cmds.QualityCutoff = runQualityCutoff

		wf, err := workflow.Translate(g, cmds, runCores)
		if err != nil {
			die(err)
		}

		if runPlot != "" {
			wf.PlotGraph(runPlot)
			infof("wrote workflow graph to %s", runPlot)

			return
		}

		createOutputDirs(planner)

		infof("running %d stage instances for %d samples with %d cores",
			g.Len(), registry.Len(), runCores)

		wf.Run()

		infof("pipeline complete; aggregated report at %s", planner.Report())
	},
}

func init() {
	RootCmd.AddCommand(runCmd)

	// flags specific to this sub-command
	runCmd.Flags().StringVarP(&runOutput, outputFlag, "o", defaultOutputDir,
		"output directory, one sub-directory per stage")
	runCmd.Flags().IntVar(&runCores, "cores", runtime.NumCPU(),
		"total cores to share between parallel instances")
	runCmd.Flags().StringVar(&runAdapter1, "adapter", workflow.DefaultAdapter1,
		"read-1 adapter sequence passed through to cutadapt")
	runCmd.Flags().StringVar(&runAdapter2, "adapter2", workflow.DefaultAdapter2,
		"read-2 adapter sequence passed through to cutadapt")
	runCmd.Flags().IntVar(&runMinLength, "minLength", workflow.DefaultMinLength,
		"passed through to cutadapt")
	runCmd.Flags().IntVar(&runQualityCutoff, "qualityCutoff", workflow.DefaultQualityCutoff,
		"passed through to cutadapt")
	runCmd.Flags().StringVar(&runPlot, "plot", "",
		"write the workflow graph to this dot file instead of running")
}

func createOutputDirs(planner stages.Planner) {
	for _, dir := range planner.Dirs() {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			die(err)
		}
	}
}
