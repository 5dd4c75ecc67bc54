// Copyright © 2018 One Concern

package main

import "github.com/kisdma/data-workspaces-core/cmd/dws/cmd"

func main() {
	cmd.Execute()
}
