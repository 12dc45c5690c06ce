package main

import "github.com/encodeous/dsdvsim/cmd"

func main() {
	cmd.Execute()
}
