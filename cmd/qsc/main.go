// Command qsc is a small diagnostic tool for the QSC text convention: it
// reads one message per line from stdin, parses it with osc.ParseQSC, and
// prints the wire-encoded bytes (or round-trips back through QSC with
// -roundtrip). It never speaks the convention over the network -- it's a
// fixture generator and a sanity check, nothing more.
package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/openosc/osc"
)

var roundtrip = flag.Bool("roundtrip", false, "print the QSC rendering of each parsed message instead of its wire bytes")

func main() {
	flag.Parse()

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		msg, err := osc.ParseQSC(line)
		if err != nil {
			log.Printf("%q: %v", line, err)
			continue
		}
		if *roundtrip {
			fmt.Println(msg.QSC())
			continue
		}
		fmt.Println(hex.EncodeToString(msg.Append(nil)))
	}
	if err := sc.Err(); err != nil {
		log.Fatal(err)
	}
}
