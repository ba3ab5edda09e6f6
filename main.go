package main

import "costume-portal/cmd/portal"

func main() {
	portal.Run()
}
