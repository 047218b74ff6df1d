package main

import "github.com/fastygo/questboard/cmd/questboard/root"

func main() {
	root.Execute()
}
