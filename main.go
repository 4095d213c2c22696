package main

import "github.com/kozaktomas/face-vector/cmd"

func main() {
	cmd.Execute()
}
