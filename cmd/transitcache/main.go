// Command transitcache runs the bus-data cache as a service.
//
//	transitcache serve  --config transitcache.yaml
//	transitcache warmup --config transitcache.yaml
//	transitcache stats  --config transitcache.yaml
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
