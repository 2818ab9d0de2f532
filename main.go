package main

import "github.com/jjenkins/readiness/cmd"

func main() {
	cmd.Execute()
}
