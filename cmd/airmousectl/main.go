package main

import "github.com/oshokin/airmouse/cmd/airmousectl/cmd"

func main() {
	cmd.Execute()
}
