package main

import "github.com/herwingx/nexogym-sub000/cmd"

func main() {
	cmd.Execute()
}
