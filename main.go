package main

import "github.com/Bendaman/EvtFilter/internal/cmd"

func main() {
	cmd.Execute()
}
