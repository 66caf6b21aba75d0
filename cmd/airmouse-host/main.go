package main

import "github.com/oshokin/airmouse/cmd/airmouse-host/cmd"

func main() {
	cmd.Execute()
}
