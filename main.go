package main

import "github.com/togpt/togpt/cmd"

func main() {
	cmd.Execute()
}
