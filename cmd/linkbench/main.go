package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/linkage"
)

type Config struct {
	Records     int
	Typos       int
	Concurrency int
	Duration    time.Duration
	Options     linkage.JoinOptions
}

// Corpus is a synthetic pair of collections where right[i] is a corrupted
// copy of left[i].
type Corpus struct {
	Left  []string
	Right []string
}

type Stats struct {
	runs      atomic.Int64
	errors    atomic.Int64
	pairs     atomic.Int64
	found     atomic.Int64
	latencies []float64
	mu        sync.Mutex
}

func (s *Stats) Record(d time.Duration, pairs []linkage.Pair, err error) {
	s.runs.Add(1)
	if err != nil {
		s.errors.Add(1)
		return
	}
	s.pairs.Add(int64(len(pairs)))
	s.found.Add(int64(plantedFound(pairs)))

	s.mu.Lock()
	s.latencies = append(s.latencies, d.Seconds())
	s.mu.Unlock()
}

func plantedFound(pairs []linkage.Pair) int {
	n := 0
	for _, p := range pairs {
		if p.Left == p.Right {
			n++
		}
	}
	return n
}

func main() {
	records := flag.Int("records", 5000, "records per side")
	typos := flag.Int("typos", 2, "characters corrupted per duplicate")
	concurrency := flag.Int("concurrency", 2, "joins running at once")
	duration := flag.Duration("duration", 30*time.Second, "benchmark duration")
	bands := flag.Int("bands", 30, "number of bands")
	bandWidth := flag.Int("band-width", 4, "minhashes per band")
	threshold := flag.Float64("threshold", 0.6, "Jaccard threshold")
	seed := flag.Uint64("seed", 1, "seed for data generation and hashing")
	flag.Parse()

	joinSeed := *seed
	cfg := Config{
		Records:     *records,
		Typos:       *typos,
		Concurrency: *concurrency,
		Duration:    *duration,
		Options: linkage.JoinOptions{
			NGramWidth: 3,
			Bands:      *bands,
			BandWidth:  *bandWidth,
			Threshold:  *threshold,
			Seed:       &joinSeed,
		},
	}

	fmt.Println("=== Record Linkage Benchmark ===")
	fmt.Printf("Records:     %d per side\n", cfg.Records)
	fmt.Printf("Typos:       %d per duplicate\n", cfg.Typos)
	fmt.Printf("Bands:       %d x %d\n", cfg.Options.Bands, cfg.Options.BandWidth)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Println()

	corpus := Generate(cfg.Records, cfg.Typos, *seed)
	stats := runBenchmark(cfg, corpus)
	printReport(os.Stdout, stats, cfg)
	if stats.runs.Load() == stats.errors.Load() {
		os.Exit(1)
	}
}

// Generate builds n random name-like records and a copy of each with typos
// substituted characters.
func Generate(n, typos int, seed uint64) Corpus {
	rng := rand.New(rand.NewPCG(seed, seed^0x5bd1e995))
	const letters = "abcdefghijklmnopqrstuvwxyz"
	c := Corpus{Left: make([]string, n), Right: make([]string, n)}
	for i := 0; i < n; i++ {
		word := func(l int) []byte {
			b := make([]byte, l)
			for k := range b {
				b[k] = letters[rng.IntN(len(letters))]
			}
			return b
		}
		rec := slices.Concat(word(5+rng.IntN(4)), []byte(" "), word(6+rng.IntN(6)))
		c.Left[i] = string(rec)
		for t := 0; t < typos; t++ {
			pos := rng.IntN(len(rec))
			if rec[pos] != ' ' {
				rec[pos] = letters[rng.IntN(len(letters))]
			}
		}
		c.Right[i] = string(rec)
	}
	return c
}

func runBenchmark(cfg Config, corpus Corpus) *Stats {
	stats := &Stats{}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				start := time.Now()
				pairs, err := linkage.SimilarityJoin(ctx, corpus.Left, corpus.Right, cfg.Options)
				if ctx.Err() != nil {
					return
				}
				stats.Record(time.Since(start), pairs, err)
				fmt.Print(".")
			}
		}()
	}
	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func printReport(w io.Writer, stats *Stats, cfg Config) {
	runs := stats.runs.Load()
	errs := stats.errors.Load()

	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Joins:           %d\n", runs)
	fmt.Fprintf(w, "Errors:          %d\n", errs)
	ok := runs - errs
	if ok > 0 {
		fmt.Fprintf(w, "Joins/sec:       %.2f\n", float64(ok)/cfg.Duration.Seconds())
		fmt.Fprintf(w, "Pairs/join:      %.1f\n", float64(stats.pairs.Load())/float64(ok))
		recall := float64(stats.found.Load()) / float64(ok*int64(cfg.Records))
		fmt.Fprintf(w, "Planted recall:  %.4f\n", recall)
	}

	stats.mu.Lock()
	latencies := slices.Clone(stats.latencies)
	stats.mu.Unlock()
	if len(latencies) == 0 {
		return
	}
	slices.Sort(latencies)
	mean, std := stat.MeanStdDev(latencies, nil)
	q := func(p float64) time.Duration {
		return seconds(stat.Quantile(p, stat.Empirical, latencies, nil))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Latency ===")
	fmt.Fprintf(w, "Min:    %s\n", seconds(latencies[0]))
	fmt.Fprintf(w, "Avg:    %s\n", seconds(mean))
	fmt.Fprintf(w, "P50:    %s\n", q(0.50))
	fmt.Fprintf(w, "P90:    %s\n", q(0.90))
	fmt.Fprintf(w, "P99:    %s\n", q(0.99))
	fmt.Fprintf(w, "Max:    %s\n", seconds(latencies[len(latencies)-1]))
	if len(latencies) > 1 {
		fmt.Fprintf(w, "StdDev: %s\n", seconds(std))
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second)).Round(time.Microsecond)
}
