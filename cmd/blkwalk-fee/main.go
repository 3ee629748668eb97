// cmd/blkwalk-fee is a downstream consumer example per spec.md §9: it
// reads framed BlockExtra records from stdin (as written by `blkwalk run`)
// and prints a running total fee, demonstrating that prevout resolution
// already happened upstream and a consumer never needs to see a raw block.
// Grounded on the teacher's small single-purpose cmd/ mains (e.g.
// cmd/tx-analyzer), which use plain flag rather than cobra since there is
// only ever one thing to configure.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/blkwalk/blkwalk/internal/stream"
)

func main() {
	quiet := flag.Bool("quiet", false, "suppress per-block lines, print only the final total")
	flag.Parse()

	var total int64
	var blocks int
	for {
		be, err := stream.ReadBlockExtra(os.Stdin)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "blkwalk-fee:", err)
			os.Exit(1)
		}

		fee, ok := be.Fee()
		blocks++
		if !ok {
			if !*quiet {
				fmt.Printf("height=%d hash=%s fee=unknown (missing prevouts)\n", be.Height, be.BlockHash)
			}
			continue
		}
		total += fee
		if !*quiet {
			fmt.Printf("height=%d hash=%s fee=%d running_total=%d\n", be.Height, be.BlockHash, fee, total)
		}
	}

	fmt.Printf("blocks=%d total_fee=%d\n", blocks, total)
}
