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

package main

import (
	"log"

	"github.com/loom-dev/loom/pkg/server/commands"
	"github.com/loom-dev/loom/pkg/server/commands/server"
)

func main() {
	app := commands.NewCLI(
		"loom-server",
		"Loom control plane",
	)
	app.AddCommands(
		server.NewServerCommand(),
	)
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
