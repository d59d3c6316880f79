// Package main is a small program whose sources back the proof tasks.
package main

import (
	"fmt"
	"os"
)

// openFile opens a file and ignores the error.
func openFile(path string) *os.File {
	f, _ := os.Open(path)
	return f
}

func computeSum(a, b int) int {
	return a + b
}

func parseConfig(input string) map[string]string {
	config := make(map[string]string)
	if input == "" {
		return config
	}
	config["raw"] = input
	return config
}

func main() {
	if f := openFile("nonexistent.txt"); f != nil {
		defer f.Close()
	}
	fmt.Println(computeSum(1, 2))
	fmt.Println(parseConfig("key=value"))
}
