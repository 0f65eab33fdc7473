package main

import "github.com/fwojciec/pgcopy/cmd/pgcopy/cmd"

func main() {
	cmd.Execute()
}
