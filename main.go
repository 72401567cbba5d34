package main

import "github.com/kozaktomas/attendance-server/cmd"

func main() {
	cmd.Execute()
}
