package main

import "github.com/geosnap/georaster/cmd"

func main() {
	cmd.Execute()
}
