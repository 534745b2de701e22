// Command diskcached drives lib/diskcache against a single torrent's
// already-downloaded files: it replays every block back through the
// cache's insert/hash/flush path, the way a resume-time verification
// pass would, and serves the cache's Prometheus metrics while it runs.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/majestrate/xdcache/lib/diskcache"
	"github.com/majestrate/xdcache/lib/diskio"
	"github.com/majestrate/xdcache/lib/fs"
	"github.com/majestrate/xdcache/lib/log"
	"github.com/majestrate/xdcache/lib/metainfo"
)

func printHelp() {
	log.Infof("usage: diskcached --torrent FILE.torrent --data-dir DIR")
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[OPTIONS]"
	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			return
		}
		printHelp()
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		log.Errorf("diskcached: %s", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	tf, err := loadTorrent(opts.Torrent)
	if err != nil {
		return err
	}
	log.Infof("loaded %s (%d pieces)", tf.TorrentName(), tf.Info.NumPieces())

	storage := &diskio.BlockStorage{
		Meta:     tf,
		FS:       fs.STD,
		BasePath: opts.DataDir,
	}
	if err := storage.Allocate(); err != nil {
		return err
	}

	ledger, err := diskio.OpenLedger(opts.LedgerPath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	registry := prometheus.NewRegistry()
	metrics := diskcache.NewMetrics(registry)

	cache := diskcache.NewCache(metrics)
	cache.Debug = opts.Debug

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveMetrics(opts.MetricsBind, registry)

	writer := ledger.Writer(storage)
	clearCb := func(aborted []*diskcache.WriteJob, parked *diskcache.ClearJob) {
		for _, j := range aborted {
			log.Warnf("aborted write job %s (piece %d block %d)", j.ID, j.Location.Piece, j.BlockIndex)
		}
		if parked != nil {
			log.Infof("completed parked clear job %s", parked.ID)
		}
	}

	flushCtx, stopFlush := context.WithCancel(ctx)
	flushDone := runFlushLoop(flushCtx, cache, writer, opts.DirtyTarget, opts.FlushEvery)

	if err := verifyTorrent(ctx, cache, storage, tf, opts.Workers); err != nil {
		log.Errorf("verification pass failed: %s", err)
	}

	waitForSignal(ctx, cancel)

	stopFlush()
	<-flushDone

	tid := diskcache.TorrentID(0)
	cache.FlushStorage(writer, tid, clearCb)
	return ledger.ForgetTorrent(tid)
}

func loadTorrent(path string) (*metainfo.TorrentFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tf := new(metainfo.TorrentFile)
	if err := tf.BDecode(f); err != nil {
		return nil, err
	}
	return tf, nil
}

func serveMetrics(bind string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	go func() {
		log.Infof("metrics listening on %s", bind)
		if err := http.ListenAndServe(bind, mux); err != nil {
			log.Warnf("metrics server exited: %s", err)
		}
	}()
}

func waitForSignal(ctx context.Context, cancel context.CancelFunc) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	select {
	case <-sig:
		log.Info("interrupted")
	case <-ctx.Done():
	}
	cancel()
}

// verifyTorrent replays every piece's on-disk bytes back through the
// cache's write-back path: insert each block, kick the hasher as runs
// land, and log whether the piece's recomputed hash matches the one
// recorded in the torrent's info dictionary.
func verifyTorrent(ctx context.Context, cache *diskcache.Cache, storage *diskio.BlockStorage, tf *metainfo.TorrentFile, workers int) error {
	if workers <= 0 {
		workers = 1
	}
	numPieces := tf.Info.NumPieces()

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, workers)

	for p := uint32(0); p < numPieces; p++ {
		piece := p
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case sem <- struct{}{}:
				defer func() { <-sem }()
			}
			return verifyPiece(cache, storage, tf, piece)
		})
	}
	return g.Wait()
}

func verifyPiece(cache *diskcache.Cache, storage *diskio.BlockStorage, tf *metainfo.TorrentFile, piece uint32) error {
	loc := diskcache.PieceLocation{Torrent: 0, Piece: piece}
	blockLen := storage.BlockSize(piece)
	pieceLen := storage.PieceSize(piece)
	blocksInPiece := (pieceLen + blockLen - 1) / blockLen

	for b := 0; b < blocksInPiece; b++ {
		n := blockLen
		if b == blocksInPiece-1 {
			n = pieceLen - b*blockLen
		}
		buf := make([]byte, n)
		if _, err := storage.ReadBlock(loc, b, buf); err != nil {
			return err
		}
		job := diskcache.NewWriteJob(loc, b, buf, storage)
		if cache.Insert(loc, b, job) {
			var completed []*diskcache.HashJob
			cache.KickHasher(loc, &completed)
			logCompleted(tf, completed)
		}
	}

	blockHashLen := 0
	if tf.Info.IsV2() {
		blockHashLen = blocksInPiece
	}
	hj := diskcache.NewHashJob(loc, blockHashLen)
	switch cache.TryHashPiece(loc, hj) {
	case diskcache.JobCompleted:
		logCompleted(tf, []*diskcache.HashJob{hj})
	case diskcache.JobQueued:
		var completed []*diskcache.HashJob
		cache.KickHasher(loc, &completed)
		logCompleted(tf, completed)
	case diskcache.PostJob:
		log.Warnf("piece %d not fully resident after sequential read - skipping", piece)
	}
	return nil
}

func logCompleted(tf *metainfo.TorrentFile, completed []*diskcache.HashJob) {
	for _, hj := range completed {
		ok := tf.Info.NumPieces() > hj.Location.Piece &&
			equalSHA1(hj.PieceHash, tf.Info.Pieces[hj.Location.Piece*20:hj.Location.Piece*20+20])
		log.Infof("piece %d verified=%v", hj.Location.Piece, ok)
	}
}

func equalSHA1(got [20]byte, want []byte) bool {
	if len(want) != 20 {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func runFlushLoop(ctx context.Context, cache *diskcache.Cache, writer diskcache.Writer, target, intervalMs int) <-chan struct{} {
	done := make(chan struct{})
	if intervalMs <= 0 {
		intervalMs = 500
	}
	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
		defer ticker.Stop()
		clearCb := func(aborted []*diskcache.WriteJob, parked *diskcache.ClearJob) {
			for _, j := range aborted {
				log.Warnf("flush loop aborted write job %s", j.ID)
			}
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cache.FlushToDisk(writer, target, clearCb)
			}
		}
	}()
	return done
}
