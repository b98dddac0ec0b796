package main

import (
	"fmt"
	"os"

	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/pkg/logger"
)

func main() {
	logger.SetOutput(os.Stderr)
	logger.Init(envOr("LOG_LEVEL", "warn"))

	root, release := newRootCmd(os.Stdout, openBackend)
	err := root.Execute()
	release()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
