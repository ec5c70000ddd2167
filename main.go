package main

import "github.com/kspervik/agentmeter/cmd"

func main() {
	cmd.Execute()
}
