package main

import "github.com/samhoang/modhub/cmd"

func main() {
	cmd.Execute()
}
