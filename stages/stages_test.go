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

package stages

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestStage(t *testing.T) {
	Convey("Stage names can be converted from strings", t, func() {
		stage, err := StringToStage("alignment")
		So(err, ShouldBeNil)
		So(stage, ShouldEqual, Alignment)

		_, err = StringToStage("basecalling")
		So(err, ShouldEqual, ErrInvalidStage)
	})

	Convey("Every stage has a positive thread requirement", t, func() {
		for _, stage := range Stages() {
			So(stage.Threads(), ShouldBeGreaterThan, 0)
		}

		So(Alignment.Threads(), ShouldEqual, AlignmentThreads)
	})
}

func TestPlanner(t *testing.T) {
	Convey("Given a planner rooted at an output directory", t, func() {
		p := Planner{OutputRoot: "/out"}

		Convey("It computes per-stage paths parameterized by sample ID", func() {
			So(p.QCDone("NSCv1"), ShouldEqual, "/out/qc/NSCv1.fastqc.done")

			t1, t2 := p.Trimmed("NSCv1")
			So(t1, ShouldEqual, "/out/trimmed/NSCv1_R1.trimmed.fastq.gz")
			So(t2, ShouldEqual, "/out/trimmed/NSCv1_R2.trimmed.fastq.gz")

			bam, bai := p.Alignment("NSCv1")
			So(bam, ShouldEqual, "/out/aligned/NSCv1.sorted.bam")
			So(bai, ShouldEqual, "/out/aligned/NSCv1.sorted.bam.bai")

			So(p.Peaks("NSCv1"), ShouldEqual, "/out/peaks/NSCv1_peaks.narrowPeak")
			So(p.Report(), ShouldEqual, "/out/multiqc/multiqc_report.html")
			So(p.LogPath(Trimming, "NSCv1"), ShouldEqual, "/out/logs/trimming/NSCv1.log")
		})

		Convey("Paths are stable across calls", func() {
			So(p.Peaks("NSCv1"), ShouldEqual, p.Peaks("NSCv1"))

			bam1, _ := p.Alignment("NSCM2")
			bam2, _ := p.Alignment("NSCM2")
			So(bam1, ShouldEqual, bam2)
		})

		Convey("No two (stage, sample) pairs share an output path", func() {
			ids := []string{"NSCv1", "NSCv2", "NSCM1", "NSCM2", "IgM"}
			seen := make(map[string]bool)

			record := func(paths ...string) {
				for _, path := range paths {
					So(seen[path], ShouldBeFalse)
					seen[path] = true
				}
			}

			for _, id := range ids {
				t1, t2 := p.Trimmed(id)
				bam, bai := p.Alignment(id)
				record(p.QCDone(id), t1, t2, bam, bai, p.Peaks(id))
			}

			record(p.Report())
		})

		Convey("It lists one directory per stage plus log directories", func() {
			dirs := p.Dirs()
			So(len(dirs), ShouldEqual, 10)
			So(dirs, ShouldContain, "/out/peaks")
			So(dirs, ShouldContain, "/out/logs/peakcalling")
		})
	})
}
