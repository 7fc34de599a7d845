package main

import "github.com/mamadbah2/kisaan/internal/cli"

func main() {
	cli.Execute()
}
