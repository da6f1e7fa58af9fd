package main

import "ollama-bridge/cmd"

func main() {
	cmd.Execute()
}
