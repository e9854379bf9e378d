// Package main is the entry point for fieldbase.
package main

func main() {
	Execute()
}
