package main

import "github.com/brightfame/crewgen/cmd"

func main() {
	cmd.Execute()
}
