package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tdm/pkg/calib"
	"github.com/tdm/pkg/capture"
	"github.com/tdm/pkg/config"
	"github.com/tdm/pkg/dut"
	"github.com/tdm/pkg/events"
	"github.com/tdm/pkg/fifo"
	"github.com/tdm/pkg/record"
	"github.com/tdm/pkg/ring"
	"github.com/tdm/pkg/waveform"
)

// Default stream file names shared with the FPGA testbench.
const (
	InputFile       = "input_tdm.txt"
	CalibrationFile = "config_tdm.txt"
	OutputFile      = "output_tdm.txt"
)

// outputs selects where gen and run put their artifacts.
type outputs struct {
	Dir      string
	Compress string // "", "gz" or "zst"
	Parquet  string
	FIFO     string
	Ring     string
	RingSize uint64
}

func (o outputs) path(name string) string {
	if o.Compress != "" {
		name += "." + o.Compress
	}
	return filepath.Join(o.Dir, name)
}

func (o outputs) validate() error {
	switch o.Compress {
	case "", "gz", "zst":
		return nil
	}
	return &config.ConfigError{Field: "compress", Reason: fmt.Sprintf("unknown compression %q", o.Compress)}
}

// source selects where analyze reads the device output from.
type source struct {
	Output string
	Calib  string
	FIFO   string
}

var (
	genOut     outputs
	runOut     outputs
	analyzeSrc source
	jsonReport bool
)

var genCmd = &cobra.Command{
	Use:   "gen",
	Short: "Synthesize input and calibration streams",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log := logrus.WithField("component", "gen")
		res, err := runGenerate(cmd.Context(), cfg, resolveSeed(cfg, log), genOut, log)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d input records to %s\n", res.InputRecords, res.InputPath)
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d calibration records to %s\n", len(res.Calibration), res.CalibrationPath)
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Report trigger episodes found in a device output stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		rep, err := runAnalyze(cmd.Context(), cfg, analyzeSrc, logrus.WithField("component", "analyze"))
		if err != nil {
			return err
		}
		return printReport(cmd.OutOrStdout(), rep, jsonReport)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate, trigger with the loopback device and analyze in one pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log := logrus.WithField("component", "run")
		rep, err := runPipeline(cmd.Context(), cfg, resolveSeed(cfg, log), runOut, log)
		if err != nil {
			return err
		}
		return printReport(cmd.OutOrStdout(), rep, jsonReport)
	},
}

func init() {
	gf := genCmd.Flags()
	gf.StringVarP(&genOut.Dir, "out-dir", "o", ".", "directory for stream files")
	gf.StringVar(&genOut.Compress, "compress", "", "compress stream files (gz, zst)")
	gf.StringVar(&genOut.Parquet, "parquet", "", "also write the input matrix to this parquet file")
	gf.StringVar(&genOut.FIFO, "fifo", "", "also stream input records into this named pipe")
	gf.StringVar(&genOut.Ring, "shm", "", "also publish binary frames to this shared-memory ring (e.g. /dev/shm/tdm_ring)")
	gf.Uint64Var(&genOut.RingSize, "shm-size", 64<<20, "shared-memory ring data size in bytes")

	af := analyzeCmd.Flags()
	af.StringVarP(&analyzeSrc.Output, "output", "i", OutputFile, "device output stream")
	af.StringVar(&analyzeSrc.Calib, "calib", "", "calibration stream to check channel count against")
	af.StringVar(&analyzeSrc.FIFO, "fifo", "", "read the output stream from this named pipe instead")
	af.BoolVar(&jsonReport, "json", false, "print the report as JSON")

	rf := runCmd.Flags()
	rf.StringVarP(&runOut.Dir, "out-dir", "o", "", "also write all three streams to this directory")
	rf.StringVar(&runOut.Compress, "compress", "", "compress stream files (gz, zst)")
	rf.StringVar(&runOut.Parquet, "parquet", "", "write the device output matrix to this parquet file")
	rf.BoolVar(&jsonReport, "json", false, "print the report as JSON")
}

type generated struct {
	RunID           uuid.UUID
	Dataset         *waveform.Dataset
	Calibration     []calib.Record
	InputRecords    int
	InputPath       string
	CalibrationPath string
}

// runGenerate synthesizes the dataset and writes the input and calibration
// streams, plus the optional parquet capture and FIFO copy.
func runGenerate(ctx context.Context, cfg config.Config, seed uint64, out outputs, log *logrus.Entry) (*generated, error) {
	if err := out.validate(); err != nil {
		return nil, err
	}
	res, err := synthesize(ctx, cfg, seed, log)
	if err != nil {
		return nil, err
	}
	m := res.Dataset.Matrix()
	flat, err := record.Encode(m)
	if err != nil {
		return nil, err
	}
	res.InputRecords = len(flat) / record.InputFields

	if err := os.MkdirAll(out.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	res.InputPath = out.path(InputFile)
	if err := record.WriteFile(res.InputPath, flat, record.InputFields); err != nil {
		return nil, err
	}
	res.CalibrationPath = out.path(CalibrationFile)
	if err := calib.WriteFile(res.CalibrationPath, res.Calibration); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"input": res.InputPath, "calibration": res.CalibrationPath}).Info("streams written")

	if out.Parquet != "" {
		if err := writeCapture(out.Parquet, m, capture.Metadata{RunID: res.RunID, Kind: "input", Config: withSeed(cfg, seed)}, log); err != nil {
			return nil, err
		}
	}
	if out.FIFO != "" {
		log.WithField("fifo", out.FIFO).Info("waiting for reader on named pipe")
		n, err := fifo.Send(ctx, out.FIFO, flat, record.InputFields)
		if err != nil {
			return nil, fmt.Errorf("fifo %s: %w", out.FIFO, err)
		}
		log.WithField("records", n).Info("input streamed to named pipe")
	}
	if out.Ring != "" {
		if err := publishRing(ctx, cfg, seed, out, log); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// publishRing regenerates the run in lockstep and writes it frame by frame to
// a shared-memory ring. When the ring is smaller than the run it waits for a
// reader to drain it.
func publishRing(ctx context.Context, cfg config.Config, seed uint64, out outputs, log *logrus.Entry) error {
	gen, err := waveform.NewLockstep(waveform.FromConfig(cfg, seed))
	if err != nil {
		return err
	}
	r, err := ring.Create(out.Ring, out.RingSize, cfg.Channels)
	if err != nil {
		return fmt.Errorf("shm %s: %w", out.Ring, err)
	}
	defer r.Close()
	log.WithFields(logrus.Fields{"shm": out.Ring, "size": out.RingSize}).Info("publishing frames to shared-memory ring")
	n, err := ring.Publish(ctx, r, gen)
	if err != nil {
		return fmt.Errorf("shm %s: %w", out.Ring, err)
	}
	log.WithField("frames", n).Info("frames published")
	return nil
}

// synthesize generates the dataset and derives its calibration.
func synthesize(ctx context.Context, cfg config.Config, seed uint64, log *logrus.Entry) (*generated, error) {
	res := &generated{RunID: uuid.New()}
	log = log.WithFields(logrus.Fields{"run_id": res.RunID, "seed": seed})

	start := time.Now()
	ds, err := waveform.Generate(ctx, waveform.FromConfig(cfg, seed))
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	res.Dataset = ds
	res.Calibration = calib.FromChannels(ds.Channels(), calib.Options{ScaleFactor: cfg.ScaleFactor})
	log.WithFields(logrus.Fields{
		"channels": cfg.Channels,
		"samples":  cfg.Samples,
		"elapsed":  time.Since(start),
	}).Info("dataset generated")
	return res, nil
}

// runAnalyze decodes an output stream and scans every channel for trigger
// episodes. When src.Calib is set the calibration stream must agree on the
// channel count.
func runAnalyze(ctx context.Context, cfg config.Config, src source, log *logrus.Entry) (*events.Report, error) {
	if src.Calib != "" {
		if _, err := calib.ReadFile(src.Calib, cfg.Channels); err != nil {
			return nil, err
		}
	}
	var (
		flat []int
		err  error
		name = src.Output
	)
	if src.FIFO != "" {
		name = src.FIFO
		if err := fifo.Create(src.FIFO); err != nil {
			return nil, err
		}
		log.WithField("fifo", src.FIFO).Info("waiting for device output on named pipe")
		flat, err = fifo.Receive(ctx, src.FIFO, record.OutputFields)
	} else {
		flat, err = record.ReadFile(src.Output, record.OutputFields)
	}
	if err != nil {
		return nil, err
	}
	frames, err := record.Decode(flat, cfg.Channels, record.OutputFields)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return analyzeOutput(cfg, frames.Transpose(), log)
}

func analyzeOutput(cfg config.Config, m record.Matrix, log *logrus.Entry) (*events.Report, error) {
	a, err := events.New(cfg.WatchdogLimit)
	if err != nil {
		return nil, err
	}
	flags, err := events.FlagsFromOutput(m, events.TriggerField)
	if err != nil {
		return nil, err
	}
	rep := a.Analyze(flags)
	log.WithFields(logrus.Fields{
		"episodes":      len(rep.Episodes),
		"long_episodes": len(rep.Long),
	}).Info("analysis complete")
	return rep, nil
}

// runPipeline drives the loopback device with freshly generated data and
// analyzes its output. Streams are only written when out.Dir is set.
func runPipeline(ctx context.Context, cfg config.Config, seed uint64, out outputs, log *logrus.Entry) (*events.Report, error) {
	if err := out.validate(); err != nil {
		return nil, err
	}
	var (
		res *generated
		err error
	)
	if out.Dir != "" {
		res, err = runGenerate(ctx, cfg, seed, outputs{Dir: out.Dir, Compress: out.Compress}, log)
	} else {
		res, err = synthesize(ctx, cfg, seed, log)
	}
	if err != nil {
		return nil, err
	}

	frames, err := dut.Loopback{}.Process(res.Calibration, res.Dataset.Matrix().Transpose())
	if err != nil {
		return nil, fmt.Errorf("loopback: %w", err)
	}
	m := frames.Transpose()

	if out.Dir != "" {
		flat, err := record.Encode(m)
		if err != nil {
			return nil, err
		}
		if err := record.WriteFile(out.path(OutputFile), flat, record.OutputFields); err != nil {
			return nil, err
		}
	}
	if out.Parquet != "" {
		if err := writeCapture(out.Parquet, m, capture.Metadata{RunID: res.RunID, Kind: "output", Config: withSeed(cfg, seed)}, log); err != nil {
			return nil, err
		}
	}
	return analyzeOutput(cfg, m, log)
}

func writeCapture(path string, m record.Matrix, meta capture.Metadata, log *logrus.Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parquet: %w", err)
	}
	rows, err := capture.WriteMatrix(f, m, meta)
	if err != nil {
		f.Close()
		return fmt.Errorf("write parquet %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"file": path, "rows": rows}).Info("parquet capture written")
	return nil
}

// withSeed pins the resolved seed into the stored config so the capture can be
// regenerated.
func withSeed(cfg config.Config, seed uint64) config.Config {
	cfg.Seed = &seed
	return cfg
}

func printReport(w io.Writer, rep *events.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	fmt.Fprintln(w, "--- Trigger Report ---")
	fmt.Fprintf(w, "Channels:        %d\n", rep.Channels)
	fmt.Fprintf(w, "Samples:         %d\n", rep.Samples)
	fmt.Fprintf(w, "Watchdog limit:  %d\n", rep.Limit)
	fmt.Fprintf(w, "Episodes:        %d\n", len(rep.Episodes))
	fmt.Fprintf(w, "Active samples:  %d\n", rep.ActiveSamples())
	fmt.Fprintf(w, "Long episodes:   %d\n", len(rep.Long))
	for _, e := range rep.Long {
		fmt.Fprintf(w, "  ch %4d  [%d, %d)  %d samples\n", e.Channel, e.Start, e.End, e.Duration())
	}
	return nil
}
