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

package workflow

import (
	sp "github.com/scipipe/scipipe"
	spcomp "github.com/scipipe/scipipe/components"

	"github.com/wtsi-hgi/cutrun-automation/graph"
)

// DefaultName is the workflow name used for scipipe's audit logs.
const DefaultName = "cutrun"

// Translate converts a built dependency graph into a scipipe workflow: one
// process per stage instance, with the instance's declared outputs as file
// targets, raw sample files fed in through file sources, and prerequisite
// edges wired port to port.
//
// scipipe then provides the executor half of the contract: topological
// scheduling, skipping instances whose targets are up to date, bounded
// parallel execution of independent instances (each instance consuming
// Threads cores out of maxCores, capped at maxCores), writing each output to
// a temporary path
// and only moving it into place once the instance's process has exited
// successfully, and aborting the run, exiting non-zero, if an instance
// fails.
func Translate(g *graph.Graph, cmds Commands, maxCores int) (*sp.Workflow, error) {
	sorted, err := g.Sorted()
	if err != nil {
		return nil, err
	}

	wf := sp.NewWorkflow(DefaultName, maxCores)
	procs := make(map[*graph.Instance]*sp.Process, len(sorted))

	for _, inst := range sorted {
		pattern, err := cmds.Command(inst)
		if err != nil {
			return nil, err
		}

		proc := wf.NewProc(inst.Name(), pattern)

		// scipipe refuses to run a process wanting more cores than the
		// workflow has, so a small core budget caps an instance's threads
		// rather than aborting the run
		proc.CoresPerTask = inst.Threads
		if proc.CoresPerTask > maxCores {
			proc.CoresPerTask = maxCores
		}

		for _, out := range inst.Outputs {
			proc.SetOut(out.Port, out.Path)
		}

		for _, in := range inst.Inputs {
			if in.Producer == nil {
				source := spcomp.NewFileSource(wf, inst.Name()+"_"+in.Port, in.Path)
				proc.In(in.Port).From(source.Out())

				continue
			}

			proc.In(in.Port).From(procs[in.Producer].Out(in.ProducerPort))
		}

		procs[inst] = proc
	}

	return wf, nil
}
