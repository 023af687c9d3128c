package main

import "github.com/go-stcp/stcp/cmd"

func main() {
	cmd.Execute()
}
