/*
Copyright 2024 The Loom Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package commands provides the command line surface of the Loom binaries.
package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/loom-dev/loom/version"
)

// CLI is the root of a Loom binary command tree.
type CLI struct {
	root *cobra.Command
}

// NewCLI new command line interface with the given name and description.
func NewCLI(name, desc string) *CLI {
	cmd := &cobra.Command{
		Use:          name,
		Short:        desc,
		SilenceUsage: true,
	}
	cmd.AddCommand(NewVersionCommand())
	return &CLI{root: cmd}
}

// AddCommands add sub commands to the CLI
func (c *CLI) AddCommands(cmds ...*cobra.Command) {
	c.root.AddCommand(cmds...)
}

// Run execute the CLI
func (c *CLI) Run() error {
	return c.root.Execute()
}

// NewVersionCommand print build version information
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints out build version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf(`Version: %v
GitRevision: %v
GolangVersion: %v
`,
				version.LoomVersion,
				version.GitRevision,
				runtime.Version())
		},
	}
}
