package main

import "github.com/engramkit/engram/cmd"

func main() {
	cmd.Execute()
}
