// Package main is the entry point for svcroute.
package main

func main() {
	Execute()
}
