package main

// options is the CLI surface, parsed by jessevdk/go-flags the same way
// go-assets-builder (in the wider retrieval pack) builds its options
// struct: plain fields tagged with short/long names and a default.
type options struct {
	Torrent      string `short:"t" long:"torrent" description:"Path to the .torrent file to verify and cache" required:"true"`
	DataDir      string `short:"d" long:"data-dir" description:"Directory holding the torrent's downloaded files" required:"true"`
	LedgerPath   string `short:"l" long:"ledger" description:"Path to the bbolt ledger database" default:"diskcached.ledger"`
	DirtyTarget  int    `long:"dirty-target" description:"Number of dirty blocks FlushToDisk is allowed to leave behind" default:"256"`
	FlushEvery   int    `long:"flush-interval-ms" description:"Milliseconds between flush passes" default:"500"`
	Workers      int    `short:"w" long:"workers" description:"Number of concurrent block-verification workers" default:"4"`
	MetricsBind  string `long:"metrics-bind" description:"Address to serve Prometheus /metrics on" default:"127.0.0.1:9433"`
	Debug        bool   `long:"debug" description:"Run the cache's invariant checker after every mutation"`
}
