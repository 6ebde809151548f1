// Command userplan inspects accounts and changes their plan. It stands in
// for a billing integration until one exists.
//
//	userplan show  <id|email>
//	userplan set   <id|email> <FREE|PREMIUM>
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
