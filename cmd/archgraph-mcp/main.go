package main

import (
	"fmt"
	"os"

	"github.com/archgraph/archgraph/pkg/mcp"
)

func main() {
	endpoint := os.Getenv("ARCHGRAPH_URL")
	if endpoint == "" {
		endpoint = "http://127.0.0.1:8090"
	}

	s := mcp.NewServer(endpoint)
	if err := s.Serve(); err != nil {
		fmt.Fprintf(os.Stderr, "archgraph-mcp: %v\n", err)
		os.Exit(1)
	}
}
