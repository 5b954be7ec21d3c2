package main

import "jpegfit/cmd"

func main() {
	cmd.Execute()
}
