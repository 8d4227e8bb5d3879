// Offline inspection of a mikradb database: dumps the cached text refs and
// local position copies without starting the server.
package main

import (
	"flag"
	"fmt"
	"os"

	"mikradb/pkg/logger"
	"mikradb/pkg/store"
)

func main() {
	var dbPath string
	var showValues bool
	flag.StringVar(&dbPath, "db", "", "pebble database path")
	flag.BoolVar(&showValues, "values", false, "print stored values, not just keys")
	flag.Parse()
	if dbPath == "" {
		fmt.Fprintln(os.Stderr, "--db required")
		os.Exit(2)
	}

	logger.Init()
	if err := store.Open(dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to open %s: %v\n", dbPath, err)
		os.Exit(1)
	}
	defer store.Close()

	for _, prefix := range []string{"text:", "position:"} {
		keys, err := store.ListKeys(prefix)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list %s failed: %v\n", prefix, err)
			os.Exit(1)
		}
		fmt.Printf("== %s (%d keys)\n", prefix, len(keys))
		for _, k := range keys {
			if !showValues {
				fmt.Println(k)
				continue
			}
			v, err := store.GetKey(k)
			if err != nil {
				fmt.Printf("%s\t<unreadable: %v>\n", k, err)
				continue
			}
			fmt.Printf("%s\t%s\n", k, v)
		}
	}
	fmt.Printf("disk usage: %d bytes\n", store.DiskUsage())
}
