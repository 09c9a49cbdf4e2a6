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

// Command pypkgquery is an interactive REPL over a package index built by
// pypkgmap, merging the original implementation's two separate one-off
// query scripts into a single tool with a subcommand per question: which
// files a package provides, and which import prefixes it provides.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/thejcannon/pypkgmapper/internal/store"
)

func main() {
	log := logrus.StandardLogger()

	app := &cli.App{
		Name:  "pypkgquery",
		Usage: "interactively query a package index built by pypkgmap",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "db",
				Value: "pypkgmapper.sqlite",
				Usage: "path to the SQLite database built by pypkgmap",
			},
		},
		Action: func(c *cli.Context) error {
			st, err := store.Open(c.Context, c.String("db"))
			if err != nil {
				return fmt.Errorf("opening index: %w", err)
			}
			defer st.Close()

			return repl(c.Context, st, os.Stdin, os.Stdout)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

// repl reads "files <package>" or "prefixes <package>" lines from in until
// EOF, writing results to out.
func repl(ctx context.Context, st *store.Store, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, "commands: files <package>, prefixes <package>")

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			fmt.Fprintln(out, "usage: files <package> | prefixes <package>")
			continue
		}

		cmd, packageName := fields[0], fields[1]

		var results []string
		var err error
		switch cmd {
		case "files":
			results, err = st.PackageFiles(ctx, packageName)
		case "prefixes":
			results, err = st.PackagePrefixes(ctx, packageName)
		default:
			fmt.Fprintln(out, "usage: files <package> | prefixes <package>")
			continue
		}

		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}

		if len(results) == 0 {
			fmt.Fprintln(out, "(none)")
			continue
		}

		for _, r := range results {
			fmt.Fprintln(out, r)
		}
	}
}
