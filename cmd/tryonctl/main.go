// Command tryonctl is the operator CLI for the try-on storage, usage and
// quota services. It talks to the same backends as the API server.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	cmd, c := newRootCommand(nil)
	err := cmd.ExecuteContext(context.Background())
	if cerr := c.close(); cerr != nil {
		fmt.Fprintln(os.Stderr, "Error: close:", cerr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
