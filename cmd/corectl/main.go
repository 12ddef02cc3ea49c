package main

import "github.com/keysafe/corectl/cmd"

func main() {
	cmd.Execute()
}
