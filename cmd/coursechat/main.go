package main

import (
	"fmt"
	"os"
)

func main() {
	var s srv
	if err := s.newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
