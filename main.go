package main

import "github.com/profzeller/p16-server-setup/cmd"

func main() {
	cmd.Execute()
}
