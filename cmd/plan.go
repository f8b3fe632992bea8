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
	"strings"

	"github.com/spf13/cobra"
	"github.com/wtsi-hgi/cutrun-automation/config"
	"github.com/wtsi-hgi/cutrun-automation/graph"
	"github.com/wtsi-hgi/cutrun-automation/samples"
	"github.com/wtsi-hgi/cutrun-automation/stages"
)

// options for this cmd.
var planOutput string

// planCmd represents the plan command.
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show discovered samples and the work they imply.",
	Long: `Show discovered samples and the work they imply.

Scans your configured experiment group directories for paired-end fastq files,
builds the dependency graph of stage instances for the discovered samples, and
prints the instances in the order they would run, along with whether each is
already up to date relative to the given output directory (ie. would be
skipped by "run").

Nothing is executed and nothing is written.
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

		warnMissingMates(registry)

		for _, group := range registry.Groups() {
			members := registry.Group(group)

			ids := make([]string, len(members))
			for n, sample := range members {
				ids[n] = sample.ID
			}

			cliPrint("%s (%d samples): %s\n", group, len(members), strings.Join(ids, ", "))
		}

		g, err := graph.Build(registry, stages.Planner{OutputRoot: planOutput},
			graph.Options{ControlID: c.ControlID})
		if err != nil {
			die(err)
		}

		sorted, err := g.Sorted()
		if err != nil {
			die(err)
		}

		cliPrint("\n%d stage instances:\n", len(sorted))

		for _, inst := range sorted {
			status := "pending"
			if inst.UpToDate() {
				status = "up to date"
			}

			outputs := make([]string, len(inst.Outputs))
			for n, out := range inst.Outputs {
				outputs[n] = out.Path
			}

			cliPrint("%s [%s] -> %s\n", inst.Name(), status, strings.Join(outputs, ", "))
		}
	},
}

func init() {
	RootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVarP(&planOutput, outputFlag, "o", defaultOutputDir,
		"output directory the pipeline would write to")
}

// warnMissingMates surfaces read-1 files whose expected mate is absent. The
// sample is still planned; its trimming instance will fail at execution time
// and the stages depending on it will be skipped.
func warnMissingMates(registry *samples.Registry) {
	for _, sample := range registry.Samples() {
		if _, err := os.Stat(sample.Read2); os.IsNotExist(err) {
			warnf("sample %s has no read-2 file at %s", sample.ID, sample.Read2)
		}
	}
}
