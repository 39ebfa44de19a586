// Command pdftext runs the document extractor and chunker on local files, to
// see what the indexer would store for a given PDF.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
