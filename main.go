package main

import "github.com/roberthgnz/lsdb/cmd"

func main() {
	cmd.Execute()
}
