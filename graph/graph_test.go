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

package graph

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/wtsi-hgi/cutrun-automation/samples"
	"github.com/wtsi-hgi/cutrun-automation/stages"
)

const (
	controlID = "IgM"
	filePerm  = 0644
	dirPerm   = 0755
)

func TestBuild(t *testing.T) {
	Convey("Given a registry with samples {A, B, IgM} and a planner", t, func() {
		exoDir := t.TempDir()
		ctrlDir := t.TempDir()

		makePair(t, exoDir, "A")
		makePair(t, exoDir, "B")
		makePair(t, ctrlDir, controlID)

		r, err := samples.Scan(map[string]string{"exo": exoDir, "ctrl": ctrlDir})
		So(err, ShouldBeNil)

		p := stages.Planner{OutputRoot: "/out"}

		Convey("Build creates per-sample instances plus peaks and aggregation", func() {
			g, err := Build(r, p, Options{ControlID: controlID})
			So(err, ShouldBeNil)

			// 3 samples * (qc, trimming, alignment) + 2 peak calling + 1 aggregation
			So(g.Len(), ShouldEqual, 12)

			Convey("Peak calling exists exactly for the non-control samples", func() {
				for _, id := range []string{"A", "B"} {
					peak, ok := g.Instance(stages.PeakCalling, id)
					So(ok, ShouldBeTrue)

					align, ok := g.Instance(stages.Alignment, id)
					So(ok, ShouldBeTrue)

					ctrlAlign, ok := g.Instance(stages.Alignment, controlID)
					So(ok, ShouldBeTrue)

					prereqs := peak.Prerequisites()
					So(prereqs, ShouldResemble, []*Instance{align, ctrlAlign})
				}

				_, ok := g.Instance(stages.PeakCalling, controlID)
				So(ok, ShouldBeFalse)
			})

			Convey("The control is still QCed, trimmed and aligned", func() {
				for _, stage := range []stages.Stage{
					stages.QualityControl, stages.Trimming, stages.Alignment,
				} {
					_, ok := g.Instance(stage, controlID)
					So(ok, ShouldBeTrue)
				}
			})

			Convey("Aggregation depends on every sample's QC and alignment", func() {
				agg, ok := g.Instance(stages.Aggregation, AggregationID)
				So(ok, ShouldBeTrue)
				So(len(agg.Inputs), ShouldEqual, 6)
				So(len(agg.Prerequisites()), ShouldEqual, 6)

				qcA, _ := g.Instance(stages.QualityControl, "A")
				So(agg.Inputs[0].Producer, ShouldEqual, qcA)
				So(agg.Inputs[0].Port, ShouldEqual, AggQCPort("A"))
				So(agg.Inputs[0].Path, ShouldEqual, p.QCDone("A"))
			})

			Convey("The graph is acyclic and topologically orderable", func() {
				sorted, err := g.Sorted()
				So(err, ShouldBeNil)
				So(len(sorted), ShouldEqual, g.Len())

				position := make(map[*Instance]int, len(sorted))
				for n, inst := range sorted {
					position[inst] = n
				}

				for _, inst := range sorted {
					for _, prereq := range inst.Prerequisites() {
						So(position[prereq], ShouldBeLessThan, position[inst])
					}
				}

				So(sorted[len(sorted)-1].Stage, ShouldEqual, stages.Aggregation)
			})

			Convey("Alignment consumes the trimmed pair, not the raw pair", func() {
				align, _ := g.Instance(stages.Alignment, "A")
				trim, _ := g.Instance(stages.Trimming, "A")

				trimmed1, _ := p.Trimmed("A")
				So(align.Inputs[0].Producer, ShouldEqual, trim)
				So(align.Inputs[0].Path, ShouldEqual, trimmed1)
			})
		})

		Convey("A missing control sample is a fatal configuration error", func() {
			g, err := Build(r, p, Options{ControlID: "IgG"})
			So(err, ShouldEqual, ErrControlNotRegistered)
			So(g, ShouldBeNil)
		})

		Convey("A sample with a missing read-2 still builds; failure is deferred", func() {
			err := os.WriteFile(filepath.Join(exoDir, "C_R1_001.fastq.gz"), []byte("@r"), filePerm)
			So(err, ShouldBeNil)

			r, err := samples.Scan(map[string]string{"exo": exoDir, "ctrl": ctrlDir})
			So(err, ShouldBeNil)

			g, err := Build(r, p, Options{ControlID: controlID})
			So(err, ShouldBeNil)

			trim, ok := g.Instance(stages.Trimming, "C")
			So(ok, ShouldBeTrue)
			So(trim.UpToDate(), ShouldBeFalse)
		})
	})

	Convey("An empty registry yields an empty graph, not an error", t, func() {
		r, err := samples.Scan(map[string]string{"empty": t.TempDir()})
		So(err, ShouldBeNil)

		g, err := Build(r, stages.Planner{OutputRoot: "/out"}, Options{ControlID: controlID})
		So(err, ShouldBeNil)
		So(g.Len(), ShouldEqual, 0)

		sorted, err := g.Sorted()
		So(err, ShouldBeNil)
		So(sorted, ShouldBeEmpty)
	})

	Convey("Sorted detects cycles in hand-made graphs", t, func() {
		a := &Instance{Stage: stages.Trimming, SampleID: "x"}
		b := &Instance{Stage: stages.Alignment, SampleID: "x"}

		a.Inputs = []Input{{Port: "in", Path: "p1", Producer: b, ProducerPort: "out"}}
		b.Inputs = []Input{{Port: "in", Path: "p2", Producer: a, ProducerPort: "out"}}

		g := &Graph{}
		g.add(a, b)

		_, err := g.Sorted()
		So(err, ShouldEqual, ErrCycle)
	})
}

func TestUpToDate(t *testing.T) {
	Convey("Given a built graph with real files on disk", t, func() {
		dataDir := t.TempDir()
		outDir := t.TempDir()

		makePair(t, dataDir, "A")
		makePair(t, dataDir, controlID)

		r, err := samples.Scan(map[string]string{"exo": dataDir})
		So(err, ShouldBeNil)

		p := stages.Planner{OutputRoot: outDir}

		g, err := Build(r, p, Options{ControlID: controlID})
		So(err, ShouldBeNil)

		Convey("Instances with no outputs on disk are not up to date", func() {
			for _, inst := range g.Instances() {
				So(inst.UpToDate(), ShouldBeFalse)
			}
		})

		Convey("With all outputs present and newer than inputs, every instance is up to date", func() {
			writeAllOutputs(t, g, p)

			for _, inst := range g.Instances() {
				So(inst.UpToDate(), ShouldBeTrue)
			}

			Convey("Until a raw input becomes newer than its consumers' outputs", func() {
				future := time.Now().Add(time.Hour)
				read1 := filepath.Join(dataDir, "A"+samples.Read1Suffix)
				So(os.Chtimes(read1, future, future), ShouldBeNil)

				qc, _ := g.Instance(stages.QualityControl, "A")
				trim, _ := g.Instance(stages.Trimming, "A")
				align, _ := g.Instance(stages.Alignment, "A")

				So(qc.UpToDate(), ShouldBeFalse)
				So(trim.UpToDate(), ShouldBeFalse)

				// alignment's declared inputs are the trimmed files, which
				// are unchanged; the executor re-runs it only once trimming
				// has produced fresh outputs
				So(align.UpToDate(), ShouldBeTrue)
			})

			Convey("An input as new as an output makes the instance stale", func() {
				qc, _ := g.Instance(stages.QualityControl, "A")

				done, ok := qc.Output(PortDone)
				So(ok, ShouldBeTrue)

				info, err := os.Stat(done)
				So(err, ShouldBeNil)

				read1 := filepath.Join(dataDir, "A"+samples.Read1Suffix)
				So(os.Chtimes(read1, info.ModTime(), info.ModTime()), ShouldBeNil)

				So(qc.UpToDate(), ShouldBeFalse)
			})
		})
	})
}

// writeAllOutputs creates every declared output in topological order with
// strictly increasing mtimes, so each instance's outputs are newer than its
// inputs.
func writeAllOutputs(t *testing.T, g *Graph, p stages.Planner) {
	t.Helper()

	for _, dir := range p.Dirs() {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			t.Fatal(err)
		}
	}

	sorted, err := g.Sorted()
	if err != nil {
		t.Fatal(err)
	}

	when := time.Now().Add(time.Minute)

	for _, inst := range sorted {
		for _, out := range inst.Outputs {
			if err := os.WriteFile(out.Path, []byte("x"), filePerm); err != nil {
				t.Fatal(err)
			}

			if err := os.Chtimes(out.Path, when, when); err != nil {
				t.Fatal(err)
			}
		}

		when = when.Add(time.Minute)
	}
}

func makePair(t *testing.T, dir, id string) {
	t.Helper()

	for _, suffix := range []string{samples.Read1Suffix, samples.Read2Suffix} {
		if err := os.WriteFile(filepath.Join(dir, id+suffix), []byte("@read"), filePerm); err != nil {
			t.Fatal(err)
		}
	}
}
