package main

import "github.com/pigmentlab/pigment/cmd"

func main() {
	cmd.Execute()
}
