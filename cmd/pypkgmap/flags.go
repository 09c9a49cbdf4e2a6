// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"github.com/urfave/cli/v2"

	"github.com/thejcannon/pypkgmapper/internal/pipeline"
)

// flagStorage holds the parsed configuration for one run of pypkgmap.
type flagStorage struct {
	PackagesFile string
	DBPath       string
	Concurrency  int

	DebugCPUProfile bool
	DebugMemProfile bool
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "pypkgmap",
		Usage: "build a SQLite index mapping Python import prefixes to the distribution packages that provide them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "packages",
				Value: "packages.txt",
				Usage: "path to a newline-separated list of package names to index",
			},
			&cli.StringFlag{
				Name:  "db",
				Value: "pypkgmapper.sqlite",
				Usage: "path to the SQLite database to build or update",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Value: pipeline.DefaultConcurrency,
				Usage: "number of packages scraped or classified at once",
			},
			&cli.BoolFlag{
				Name:  "debug.cpuprofile",
				Usage: "dump a CPU profile to /tmp/cpu.pprof on SIGHUP",
			},
			&cli.BoolFlag{
				Name:  "debug.memprofile",
				Usage: "dump a heap profile to /tmp/mem.pprof on SIGHUP",
			},
		},
	}
}

func populateFlags(c *cli.Context) *flagStorage {
	return &flagStorage{
		PackagesFile:    c.String("packages"),
		DBPath:          c.String("db"),
		Concurrency:     c.Int("concurrency"),
		DebugCPUProfile: c.Bool("debug.cpuprofile"),
		DebugMemProfile: c.Bool("debug.memprofile"),
	}
}
