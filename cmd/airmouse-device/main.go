package main

import "github.com/oshokin/airmouse/cmd/airmouse-device/cmd"

func main() {
	cmd.Execute()
}
