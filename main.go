package main

import "github.com/chriserin/featsync/cmd"

func main() {
	cmd.Execute()
}
