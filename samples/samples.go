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

// package samples discovers paired-end fastq samples on disk by naming
// convention and groups them by the experiment group of their source
// directory.

package samples

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// Read1Suffix and Read2Suffix are the filename suffixes of the two mates
	// of a paired-end sample, following the usual Illumina bcl2fastq naming.
	Read1Suffix = "_R1_001.fastq.gz"
	Read2Suffix = "_R2_001.fastq.gz"
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrNotRead1        = Error("filename does not match the read-1 naming convention")
	ErrEmptySampleID   = Error("filename has an empty sample identifier")
	ErrUnknownSample   = Error("unknown sample identifier")
	ErrDuplicateSample = Error("sample identifier found in more than one group directory")
)

// ParsedName is the structured result of parsing a read-1 fastq filename.
type ParsedName struct {
	// SampleID is the filename prefix before the read-pair marker.
	SampleID string

	// Read2Name is the basename the corresponding read-2 file is expected to
	// have.
	Read2Name string
}

// ParseFastqName parses a fastq basename following the
// {sample}_R1_001.fastq.gz convention. Filenames that do not match the read-1
// convention return ErrNotRead1; a filename that is nothing but the suffix
// returns ErrEmptySampleID.
func ParseFastqName(name string) (ParsedName, error) {
	if !strings.HasSuffix(name, Read1Suffix) {
		return ParsedName{}, ErrNotRead1
	}

	id := strings.TrimSuffix(name, Read1Suffix)
	if id == "" {
		return ParsedName{}, ErrEmptySampleID
	}

	return ParsedName{
		SampleID:  id,
		Read2Name: id + Read2Suffix,
	}, nil
}

// Sample is a paired-end sequencing sample discovered in a group directory.
// Samples are created at scan time and immutable thereafter.
type Sample struct {
	// ID is the sample identifier derived from the fastq filename prefix.
	ID string

	// Group is the experiment group of the directory the sample was found in.
	Group string

	// Read1 and Read2 are the paths to the raw fastq pair. Read2 is derived
	// from Read1's name and is not verified to exist at scan time; a missing
	// mate fails at execution time in the stage that consumes it.
	Read1 string
	Read2 string
}

// Registry holds all samples discovered by Scan. It is immutable; pass it by
// reference to whatever needs to plan work over the samples.
type Registry struct {
	samples map[string]Sample
	order   []string
	groups  []string
}

// Scan lists each given group directory and creates one Sample per file
// matching the read-1 naming convention, with group membership taken from the
// group the directory was registered under. Directories with no matching files
// yield no samples and no error. A sample identifier appearing in more than
// one directory is a fatal configuration error.
//
// Read-2 existence is deliberately not checked here; see Sample.Read2.
func Scan(groupDirs map[string]string) (*Registry, error) {
	r := &Registry{samples: make(map[string]Sample)}

	groups := make([]string, 0, len(groupDirs))
	for group := range groupDirs {
		groups = append(groups, group)
	}

	sort.Strings(groups)
	r.groups = groups

	for _, group := range groups {
		if err := r.scanDir(group, groupDirs[group]); err != nil {
			return nil, err
		}
	}

	sort.Strings(r.order)

	return r, nil
}

func (r *Registry) scanDir(group, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		parsed, err := ParseFastqName(entry.Name())
		if err != nil {
			continue
		}

		if _, exists := r.samples[parsed.SampleID]; exists {
			return ErrDuplicateSample
		}

		r.samples[parsed.SampleID] = Sample{
			ID:    parsed.SampleID,
			Group: group,
			Read1: filepath.Join(dir, entry.Name()),
			Read2: filepath.Join(dir, parsed.Read2Name),
		}

		r.order = append(r.order, parsed.SampleID)
	}

	return nil
}

// Lookup returns the sample with the given identifier, or ErrUnknownSample if
// no such sample was discovered at scan time.
func (r *Registry) Lookup(id string) (Sample, error) {
	sample, ok := r.samples[id]
	if !ok {
		return Sample{}, ErrUnknownSample
	}

	return sample, nil
}

// Samples returns all discovered samples sorted by identifier.
func (r *Registry) Samples() []Sample {
	result := make([]Sample, 0, len(r.order))

	for _, id := range r.order {
		result = append(result, r.samples[id])
	}

	return result
}

// Group returns the samples belonging to the given experiment group, sorted
// by identifier. An unknown or empty group yields a nil slice, not an error.
func (r *Registry) Group(group string) []Sample {
	var result []Sample

	for _, id := range r.order {
		if r.samples[id].Group == group {
			result = append(result, r.samples[id])
		}
	}

	return result
}

// Groups returns the group labels the registry was scanned with, sorted.
func (r *Registry) Groups() []string {
	return r.groups
}

// Len returns the number of discovered samples.
func (r *Registry) Len() int {
	return len(r.samples)
}
