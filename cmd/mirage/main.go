// mirage serves in-memory mock backends described by scenario files.
package main

import "github.com/getmockd/mirage/pkg/cli"

func main() {
	cli.Execute()
}
