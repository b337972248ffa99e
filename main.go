package main

import "image-track-backend/cmd"

func main() {
	cmd.Run()
}
