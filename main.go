// Sentinel - Supply chain risk monitoring for Go.
//
// Sentinel turns a supplier roster and a stream of news signals into a
// supply network, scores the risk each signal poses to each supplier,
// simulates the resulting disruptions and recommends mitigating actions.
package main

import (
	"fmt"
	"os"

	"github.com/Benny93/sentinel-go/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
