package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/linkage"
	"github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/resilience"
)

const usage = `usage: linker [-config path] <command> [flags]

commands:
  join      minhash similarity join of two CSV columns
  pairwise  row-by-row Jaccard similarity of two CSV columns
  euclid    radius join of two numeric CSV files
  hamming   Hamming-distance join of two CSV columns
  em        Fellegi-Sunter match probabilities for an agreement matrix
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type app struct {
	cfg     *config.Config
	metrics *metrics.Metrics
	out     io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("linker", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := global.String("config", "", "path to YAML config file")
	if err := global.Parse(args); err != nil {
		return apperrors.ExitInvalidInput
	}
	if global.NArg() == 0 {
		global.Usage()
		return apperrors.ExitInvalidInput
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		if apperrors.Is(err, os.ErrNotExist) {
			return apperrors.ExitInputNotFound
		}
		return apperrors.ExitInvalidInput
	}
	logger.Setup(stderr, cfg.Logging.Level, cfg.Logging.Format)

	command, rest := global.Arg(0), global.Args()[1:]
	a := &app{cfg: cfg, out: stdout}
	commands := map[string]func(context.Context, []string) error{
		"join":     a.join,
		"pairwise": a.pairwise,
		"euclid":   a.euclid,
		"hamming":  a.hamming,
		"em":       a.em,
	}
	fn, ok := commands[command]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", command)
		global.Usage()
		return apperrors.ExitInvalidInput
	}

	job := health.NewJob(command)
	if cfg.Metrics.Enabled {
		checker := health.NewChecker()
		checker.Register("job", job.Check)
		reg := prometheus.NewRegistry()
		a.metrics = metrics.New(reg)
		shutdown := metrics.StartServer(cfg.Metrics.Port, reg, checker)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Warn("metrics server shutdown", "error", err)
			}
		}()
	}

	ctx = logger.WithRun(ctx, uuid.New().String(), command)
	_, err = resilience.WithTimeout(ctx, cfg.Run.Timeout, command, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx, rest)
	})
	job.Finish(err)
	if err != nil {
		logger.FromContext(ctx).Error("command failed", "error", err)
		return apperrors.ExitCode(err)
	}
	return apperrors.ExitOK
}

// pairFlags are shared by the commands that read two CSV files.
type pairFlags struct {
	left, right string
	header      bool
	seed        string
}

func (p *pairFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&p.left, "left", "", "left CSV file")
	fs.StringVar(&p.right, "right", "", "right CSV file")
	fs.BoolVar(&p.header, "header", false, "skip the first row of each file")
	fs.StringVar(&p.seed, "seed", "", "seed overriding join.seed")
}

func (p *pairFlags) read() (left, right [][]string, err error) {
	if p.left == "" || p.right == "" {
		return nil, nil, apperrors.Invalid("both -left and -right are required")
	}
	if left, err = readRows(p.left, p.header); err != nil {
		return nil, nil, err
	}
	if right, err = readRows(p.right, p.header); err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func (p *pairFlags) resolveSeed(configured *uint64) (*uint64, error) {
	if p.seed == "" {
		return configured, nil
	}
	s, err := strconv.ParseUint(p.seed, 10, 64)
	if err != nil {
		return nil, apperrors.Invalid("seed %q is not an unsigned integer", p.seed)
	}
	return &s, nil
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return apperrors.Invalid("%s: %v", fs.Name(), err)
	}
	return nil
}

func (a *app) join(ctx context.Context, args []string) error {
	fs := newFlagSet("join")
	var pf pairFlags
	pf.register(fs)
	col := fs.Int("column", 0, "column holding the record text")
	saltCol := fs.Int("salt-column", -1, "column holding the blocking salt, -1 for none")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	leftRows, rightRows, err := pf.read()
	if err != nil {
		return err
	}
	seed, err := pf.resolveSeed(a.cfg.Join.Seed)
	if err != nil {
		return err
	}
	left, err := column(leftRows, *col, pf.left)
	if err != nil {
		return err
	}
	right, err := column(rightRows, *col, pf.right)
	if err != nil {
		return err
	}

	jc := a.cfg.Join
	opts := linkage.JoinOptions{
		NGramWidth: jc.NGramWidth,
		Bands:      jc.Bands,
		BandWidth:  jc.BandWidth,
		Threshold:  jc.Threshold,
		Seed:       seed,
		Workers:    jc.Workers,
		Strategy:   jc.Strategy,
		Normalize:  jc.Normalize,
		Metrics:    a.metrics,
	}

	var pairs []linkage.Pair
	if *saltCol >= 0 {
		leftSalt, err := column(leftRows, *saltCol, pf.left)
		if err != nil {
			return err
		}
		rightSalt, err := column(rightRows, *saltCol, pf.right)
		if err != nil {
			return err
		}
		pairs, err = linkage.SaltedSimilarityJoin(ctx, left, right, leftSalt, rightSalt, opts)
		if err != nil {
			return err
		}
	} else {
		pairs, err = linkage.SimilarityJoin(ctx, left, right, opts)
		if err != nil {
			return err
		}
	}
	return a.writePairs(pairs)
}

func (a *app) pairwise(_ context.Context, args []string) error {
	fs := newFlagSet("pairwise")
	var pf pairFlags
	pf.register(fs)
	col := fs.Int("column", 0, "column holding the record text")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	leftRows, rightRows, err := pf.read()
	if err != nil {
		return err
	}
	left, err := column(leftRows, *col, pf.left)
	if err != nil {
		return err
	}
	right, err := column(rightRows, *col, pf.right)
	if err != nil {
		return err
	}
	sims, err := linkage.PairwiseSimilarity(left, right, a.cfg.Join.NGramWidth)
	if err != nil {
		return err
	}
	return a.write(map[string]any{"similarities": sims})
}

func (a *app) euclid(ctx context.Context, args []string) error {
	fs := newFlagSet("euclid")
	var pf pairFlags
	pf.register(fs)
	exact := fs.Bool("exact", false, "use the exact k-d tree join instead of LSH")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	leftRows, rightRows, err := pf.read()
	if err != nil {
		return err
	}
	seed, err := pf.resolveSeed(a.cfg.Join.Seed)
	if err != nil {
		return err
	}
	left, err := floatMatrix(leftRows, pf.left)
	if err != nil {
		return err
	}
	right, err := floatMatrix(rightRows, pf.right)
	if err != nil {
		return err
	}

	var pairs []linkage.Pair
	if *exact {
		pairs, err = linkage.ExactRadiusJoin(left, right, a.cfg.Euclidean.Radius)
	} else {
		pairs, err = linkage.EuclideanRadiusJoin(ctx, left, right, linkage.EuclideanOptions{
			Radius:    a.cfg.Euclidean.Radius,
			Bands:     a.cfg.Join.Bands,
			BandWidth: a.cfg.Join.BandWidth,
			R:         a.cfg.Euclidean.R,
			Seed:      seed,
			Workers:   a.cfg.Join.Workers,
			Strategy:  a.cfg.Join.Strategy,
			Metrics:   a.metrics,
		})
	}
	if err != nil {
		return err
	}
	return a.writePairs(pairs)
}

func (a *app) hamming(ctx context.Context, args []string) error {
	fs := newFlagSet("hamming")
	var pf pairFlags
	pf.register(fs)
	col := fs.Int("column", 0, "column holding the record text")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	leftRows, rightRows, err := pf.read()
	if err != nil {
		return err
	}
	seed, err := pf.resolveSeed(a.cfg.Join.Seed)
	if err != nil {
		return err
	}
	left, err := column(leftRows, *col, pf.left)
	if err != nil {
		return err
	}
	right, err := column(rightRows, *col, pf.right)
	if err != nil {
		return err
	}
	pairs, err := linkage.HammingJoin(ctx, left, right, linkage.HammingOptions{
		MaxDistance: a.cfg.Hamming.MaxDistance,
		Bands:       a.cfg.Join.Bands,
		BandWidth:   a.cfg.Join.BandWidth,
		Seed:        seed,
		Workers:     a.cfg.Join.Workers,
		Strategy:    a.cfg.Join.Strategy,
		Metrics:     a.metrics,
	})
	if err != nil {
		return err
	}
	return a.writePairs(pairs)
}

func (a *app) em(_ context.Context, args []string) error {
	fs := newFlagSet("em")
	input := fs.String("input", "", "CSV agreement matrix, one row per candidate pair")
	initialPath := fs.String("initial", "", "optional CSV of initial match probabilities")
	header := fs.Bool("header", false, "skip the first row of each file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *input == "" {
		return apperrors.Invalid("-input is required")
	}
	rows, err := readRows(*input, *header)
	if err != nil {
		return err
	}
	agreement, err := intMatrix(rows, *input)
	if err != nil {
		return err
	}

	var initial []float64
	if *initialPath != "" {
		initRows, err := readRows(*initialPath, *header)
		if err != nil {
			return err
		}
		if initial, err = floatColumn(initRows, *initialPath); err != nil {
			return err
		}
	}

	var opts []linkage.EMOption
	if a.metrics != nil {
		opts = append(opts, linkage.WithEMMetrics(a.metrics))
	}
	probs, err := linkage.EMLink(agreement, initial, a.cfg.EM.Tolerance, a.cfg.EM.MaxIterations, opts...)
	if err != nil {
		return err
	}
	return a.write(map[string]any{"probabilities": probs})
}

func (a *app) writePairs(pairs []linkage.Pair) error {
	out := make([][2]int, len(pairs))
	for i, p := range pairs {
		out[i] = [2]int{p.Left, p.Right}
	}
	return a.write(map[string]any{"pairs": out, "count": len(out)})
}

func (a *app) write(v any) error {
	enc := json.NewEncoder(a.out)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}
