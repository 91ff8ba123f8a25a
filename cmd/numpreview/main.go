// numpreview renders what an invoice number would look like for a given
// format configuration, without touching any counter.
package main

import (
	"flag"
	"fmt"

	"github.com/belegwerk/einvoice/internal/repository"
)

func main() {
	var (
		prefix     = flag.String("prefix", "RE", "invoice number prefix")
		separator  = flag.String("separator", "-", "segment separator")
		yearFormat = flag.Bool("year", true, "include the calendar year segment")
		padding    = flag.Int("padding", 5, "zero-pad width of the counter")
	)
	flag.Parse()

	fmt.Println(repository.PreviewFormat(*prefix, *separator, *yearFormat, *padding))
}
