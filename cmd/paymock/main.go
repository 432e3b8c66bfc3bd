// Package main is the entry point for paymock.
package main

func main() {
	Execute()
}
