package main

import "github.com/jburnhams/image-stitch-sub000/cmd"

func main() {
	cmd.Execute()
}
