package main

import "github.com/oshokin/dmg-builder/cmd/dmg-builder/cmd"

func main() {
	cmd.Execute()
}
