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
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/thejcannon/pypkgmapper/internal/pipeline"
	"github.com/thejcannon/pypkgmapper/internal/scraper"
	"github.com/thejcannon/pypkgmapper/internal/store"
)

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

// registerSIGINTHandler cancels cancel in response to SIGINT, giving the
// pipeline's in-flight errgroup stage a chance to unwind instead of being
// killed mid-write.
func registerSIGINTHandler(log *logrus.Logger, cancel context.CancelFunc) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)

	go func() {
		<-signalChan
		log.Println("Received SIGINT, cancelling the run...")
		cancel()
	}()
}

// registerSIGHUPHandler dumps profiles on SIGHUP, if enabled.
func registerSIGHUPHandler(log *logrus.Logger, cpu bool, mem bool) {
	var desc string
	switch {
	case cpu && mem:
		desc = "CPU and memory profiles"
	case cpu:
		desc = "CPU profile"
	case mem:
		desc = "memory profile"
	default:
		return
	}

	const duration = 10 * time.Second
	profileOnce := func() (err error) {
		if cpu {
			var f *os.File
			f, err = os.Create("/tmp/cpu.pprof")
			if err != nil {
				return fmt.Errorf("Create: %v", err)
			}
			defer f.Close()

			pprof.StartCPUProfile(f)
			defer pprof.StopCPUProfile()
		}

		if mem {
			var f *os.File
			f, err = os.Create("/tmp/mem.pprof")
			if err != nil {
				return fmt.Errorf("Create: %v", err)
			}
			defer f.Close()
			defer pprof.Lookup("heap").WriteTo(f, 0)
		}

		time.Sleep(duration)
		return nil
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGHUP)

	go func() {
		for {
			<-c
			log.Printf("Received SIGHUP. Dumping %s to /tmp...", desc)
			if err := profileOnce(); err != nil {
				log.Printf("Error profiling: %v", err)
			} else {
				log.Println("Done profiling.")
			}
		}
	}()
}

func readPackageNames(path string) (names []string, err error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ReadFile(%q): %w", path, err)
	}

	for _, line := range strings.Split(string(contents), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			names = append(names, line)
		}
	}

	return
}

////////////////////////////////////////////////////////////////////////
// main function
////////////////////////////////////////////////////////////////////////

func main() {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	app := newApp()
	app.Action = func(c *cli.Context) error {
		flags := populateFlags(c)

		registerSIGHUPHandler(log, flags.DebugCPUProfile, flags.DebugMemProfile)

		names, err := readPackageNames(flags.PackagesFile)
		if err != nil {
			return fmt.Errorf("reading package list: %w", err)
		}

		st, err := store.Open(c.Context, flags.DBPath)
		if err != nil {
			return fmt.Errorf("opening index: %w", err)
		}
		defer st.Close()

		sc := scraper.New(nil)
		p := pipeline.New(st, sc, log)
		p.Concurrency = flags.Concurrency

		ctx, cancel := context.WithCancel(c.Context)
		defer cancel()
		registerSIGINTHandler(log, cancel)

		if err := p.Run(ctx, names); err != nil {
			return fmt.Errorf("running pipeline: %w", err)
		}

		log.Println("Successfully exiting.")
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}
