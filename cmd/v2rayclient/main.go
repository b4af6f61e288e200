package main

// Injected via ldflags at release time.
var version = "dev"

func main() {
	Execute()
}
