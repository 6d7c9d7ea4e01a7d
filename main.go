package main

import "github.com/shaharia-lab/muster/cmd"

func main() {
	cmd.Execute()
}
