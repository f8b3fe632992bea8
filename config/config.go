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

package config

import (
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvVarGroupDirs   = "CUTRUN_AUTOMATION_GROUP_DIRS"
	EnvVarGenomeIndex = "CUTRUN_AUTOMATION_GENOME_INDEX"
	EnvVarGenomeSize  = "CUTRUN_AUTOMATION_GENOME_SIZE"
	EnvVarControl     = "CUTRUN_AUTOMATION_CONTROL"

	// DefaultControlID is the sample that peak calling uses as its background
	// comparator when CUTRUN_AUTOMATION_CONTROL is unset.
	DefaultControlID = "IgM"

	groupDirsPairSep  = ","
	groupDirsValueSep = ":"
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrMissingEnvs  = Error("missing required environment variables")
	ErrBadGroupDirs = Error("group dirs must be a comma-separated list of group:directory pairs")
)

type Config struct {
	// GroupDirs maps each experiment group label to the directory holding
	// that group's raw fastq files.
	GroupDirs map[string]string

	// GenomeIndex is the path prefix of the bowtie2 index for the reference
	// genome.
	GenomeIndex string

	// GenomeSize is the effective genome size argument passed to the peak
	// caller, eg. "mm" for mouse.
	GenomeSize string

	// ControlID is the sample identifier of the fixed peak-calling control.
	ControlID string
}

// FromEnv returns a new Config with properties populated from environment
// variables CUTRUN_AUTOMATION_*, where * is amongst: GROUP_DIRS, GENOME_INDEX,
// GENOME_SIZE and CONTROL. CONTROL is optional and defaults to "IgM".
//
// GROUP_DIRS is a comma-separated list of group:directory pairs, eg.
// "exo:/data/exo,endo:/data/endo".
//
// If these environment variables are defined in a file called .env (and not
// previously set in an environment variable), they will be automatically
// loaded.
//
// Optionally supply a directory to look for the .env file in.
func FromEnv(dir ...string) (*Config, error) {
	var parentDir string
	if len(dir) == 1 {
		parentDir = dir[0] + string(os.PathSeparator)
	}

	godotenv.Load(parentDir + ".env")

	groupDirsStr := os.Getenv(EnvVarGroupDirs)
	index := os.Getenv(EnvVarGenomeIndex)
	size := os.Getenv(EnvVarGenomeSize)

	if groupDirsStr == "" || index == "" || size == "" {
		return nil, ErrMissingEnvs
	}

	groupDirs, err := parseGroupDirs(groupDirsStr)
	if err != nil {
		return nil, err
	}

	control := os.Getenv(EnvVarControl)
	if control == "" {
		control = DefaultControlID
	}

	return &Config{
		GroupDirs:   groupDirs,
		GenomeIndex: index,
		GenomeSize:  size,
		ControlID:   control,
	}, nil
}

func parseGroupDirs(str string) (map[string]string, error) {
	groupDirs := make(map[string]string)

	for _, pair := range strings.Split(str, groupDirsPairSep) {
		group, dir, ok := strings.Cut(pair, groupDirsValueSep)
		if !ok || group == "" || dir == "" {
			return nil, ErrBadGroupDirs
		}

		groupDirs[group] = dir
	}

	return groupDirs, nil
}

// Groups returns the experiment group labels in a deterministic (sorted)
// order.
func (c *Config) Groups() []string {
	groups := make([]string, 0, len(c.GroupDirs))

	for group := range c.GroupDirs {
		groups = append(groups, group)
	}

	sort.Strings(groups)

	return groups
}
