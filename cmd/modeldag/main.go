// Command modeldag is the CLI driving the plan/apply/migrate workflow
// described in the core packages: it loads a proposed model set, builds
// a Plan against a target environment, and evaluates it.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
