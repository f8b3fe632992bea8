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

// package stages defines the fixed pipeline stages and the planner that maps
// (stage, sample) to deterministic output paths under one root directory.

package stages

import "path/filepath"

// Stage is one logical pipeline step.
type Stage string

const (
	QualityControl Stage = "qc"
	Trimming       Stage = "trimming"
	Alignment      Stage = "alignment"
	PeakCalling    Stage = "peakcalling"
	Aggregation    Stage = "aggregation"
)

type Error string

func (e Error) Error() string { return string(e) }

const ErrInvalidStage = Error("invalid stage name")

// Stages returns all stages in their per-sample pipeline order, with
// aggregation terminal.
func Stages() []Stage {
	return []Stage{QualityControl, Trimming, Alignment, PeakCalling, Aggregation}
}

// StringToStage converts a string to a Stage type.
func StringToStage(s string) (Stage, error) {
	switch Stage(s) {
	case QualityControl, Trimming, Alignment, PeakCalling, Aggregation:
		return Stage(s), nil
	default:
		return "", ErrInvalidStage
	}
}

// Default thread requirements per stage, used as each StageInstance's share
// of the executor's global core budget.
const (
	QualityControlThreads = 1
	TrimmingThreads       = 4
	AlignmentThreads      = 8
	PeakCallingThreads    = 2
	AggregationThreads    = 1
)

// Threads returns the thread requirement of a stage.
func (s Stage) Threads() int {
	switch s {
	case Trimming:
		return TrimmingThreads
	case Alignment:
		return AlignmentThreads
	case PeakCalling:
		return PeakCallingThreads
	default:
		return QualityControlThreads
	}
}

const (
	qcSubdir      = "qc"
	trimmedSubdir = "trimmed"
	alignedSubdir = "aligned"
	peaksSubdir   = "peaks"
	multiqcSubdir = "multiqc"
	logsSubdir    = "logs"

	qcDoneSuffix      = ".fastqc.done"
	trimmed1Suffix    = "_R1.trimmed.fastq.gz"
	trimmed2Suffix    = "_R2.trimmed.fastq.gz"
	bamSuffix         = ".sorted.bam"
	baiSuffix         = ".sorted.bam.bai"
	peaksSuffix       = "_peaks.narrowPeak"
	multiqcReport     = "multiqc_report.html"
	instanceLogSuffix = ".log"
)

// Planner deterministically computes the output paths of every stage under a
// single root output directory, one sub-directory per stage. It is pure: no
// side effects, no filesystem access, and the same inputs always yield the
// same paths, so an executor's up-to-date checks remain meaningful between
// runs.
//
// Distinct (stage, sample) pairs never share an output path: every per-sample
// path embeds the sample identifier, per-stage paths live in per-stage
// sub-directories, and the aggregation paths are singletons in their own
// sub-directory.
type Planner struct {
	// OutputRoot is the root output directory all stage sub-directories live
	// under.
	OutputRoot string
}

// Dir returns the output directory of the given stage.
func (p Planner) Dir(stage Stage) string {
	switch stage {
	case QualityControl:
		return filepath.Join(p.OutputRoot, qcSubdir)
	case Trimming:
		return filepath.Join(p.OutputRoot, trimmedSubdir)
	case Alignment:
		return filepath.Join(p.OutputRoot, alignedSubdir)
	case PeakCalling:
		return filepath.Join(p.OutputRoot, peaksSubdir)
	default:
		return filepath.Join(p.OutputRoot, multiqcSubdir)
	}
}

// QCDone returns the completion flag path of a sample's quality-control
// instance. The fastqc reports themselves are side outputs written to the
// same directory using fastqc's own input-derived naming.
func (p Planner) QCDone(sampleID string) string {
	return filepath.Join(p.Dir(QualityControl), sampleID+qcDoneSuffix)
}

// Trimmed returns the paths of a sample's adapter-trimmed read pair.
func (p Planner) Trimmed(sampleID string) (string, string) {
	dir := p.Dir(Trimming)

	return filepath.Join(dir, sampleID+trimmed1Suffix),
		filepath.Join(dir, sampleID+trimmed2Suffix)
}

// Alignment returns the paths of a sample's coordinate-sorted alignment and
// its index.
func (p Planner) Alignment(sampleID string) (string, string) {
	dir := p.Dir(Alignment)

	return filepath.Join(dir, sampleID+bamSuffix),
		filepath.Join(dir, sampleID+baiSuffix)
}

// Peaks returns the path of a sample's called peaks.
func (p Planner) Peaks(sampleID string) string {
	return filepath.Join(p.Dir(PeakCalling), sampleID+peaksSuffix)
}

// Report returns the path of the aggregated report covering all samples.
func (p Planner) Report() string {
	return filepath.Join(p.Dir(Aggregation), multiqcReport)
}

// LogPath returns the per-instance, per-stage log file path. The aggregation
// stage has no sample of its own, so pass its fixed instance identifier as
// the sample ID.
func (p Planner) LogPath(stage Stage, sampleID string) string {
	return filepath.Join(p.OutputRoot, logsSubdir, string(stage), sampleID+instanceLogSuffix)
}

// Dirs returns every directory the planner will place files in, for creation
// before a run.
func (p Planner) Dirs() []string {
	dirs := make([]string, 0, len(Stages())*2)

	for _, stage := range Stages() {
		dirs = append(dirs,
			p.Dir(stage),
			filepath.Join(p.OutputRoot, logsSubdir, string(stage)))
	}

	return dirs
}
