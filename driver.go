package mrjob

import (
	"bufio"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	pb "gopkg.in/cheggaaa/pb.v1"

	"github.com/stug/mrjob/internal/pkg/engine"
	"github.com/stug/mrjob/internal/pkg/mrfs"
)

// Driver controls one harness invocation: it reads raw input, runs the
// selected step range through the Harness, and finalizes output to storage.
type Driver struct {
	plan   *JobPlan
	Config *config
	runID  string

	bytesRead    int64
	bytesWritten int64
}

// config configures a Driver's execution
type config struct {
	Inputs           []string
	WorkingLocation  string
	Parallelism      int
	MaxConcurrency   int
	StartStep        int // -1 means start of plan
	EndStep          int // -1 means end of plan
	CompressionCodec string
	NumOutputParts   int
	SkipBadRecords   bool
}

func newConfig() *config {
	loadConfig() // Load viper config from settings file(s) and environment

	// Register command line flags
	flag.Parse()
	viper.BindPFlags(flag.CommandLine)

	return &config{
		Inputs:          []string{},
		WorkingLocation: viper.GetString("workingLocation"),
		Parallelism:     viper.GetInt("parallelism"),
		MaxConcurrency:  viper.GetInt("maxConcurrency"),
		StartStep:       -1,
		EndStep:         -1,
		NumOutputParts:  viper.GetInt("numOutputParts"),
		SkipBadRecords:  viper.GetBool("skipBadRecords"),
	}
}

// Option allows configuration of a Driver
type Option func(*config)

// NewDriver creates a new Driver for a job plan with optional configuration
func NewDriver(plan *JobPlan, options ...Option) *Driver {
	d := &Driver{
		plan:  plan,
		runID: uuid.NewString(),
	}

	c := newConfig()
	for _, f := range options {
		f(c)
	}

	d.Config = c
	log.Debugf("Loaded config: %#v", c)

	return d
}

// WithInputs specifies job inputs (i.e. input files/directories)
func WithInputs(inputs ...string) Option {
	return func(c *config) {
		c.Inputs = append(c.Inputs, inputs...)
	}
}

// WithWorkingLocation sets the output location and filesystem backend
func WithWorkingLocation(location string) Option {
	return func(c *config) {
		c.WorkingLocation = location
	}
}

// WithStepRange limits execution to steps [start, end) of the plan
func WithStepRange(start, end int) Option {
	return func(c *config) {
		c.StartStep = start
		c.EndStep = end
	}
}

// WithCompressionCodec selects the codec for final output segments
func WithCompressionCodec(codec string) Option {
	return func(c *config) {
		c.CompressionCodec = codec
	}
}

// WithParallelism sets the engine partition count
func WithParallelism(n int) Option {
	return func(c *config) {
		c.Parallelism = n
	}
}

// WithNumOutputParts sets how many part files the output is split into
func WithNumOutputParts(n int) Option {
	return func(c *config) {
		c.NumOutputParts = n
	}
}

// WithSkipBadRecords drops undecodable input lines instead of failing
func WithSkipBadRecords() Option {
	return func(c *config) {
		c.SkipBadRecords = true
	}
}

// readInputs lists all input files and reads them into raw lines, preserving
// file listing order. Files are read concurrently.
func (d *Driver) readInputs(fs mrfs.FileSystem) ([][]byte, error) {
	var files []mrfs.FileInfo
	for _, input := range d.Config.Inputs {
		infos, err := fs.ListFiles(input)
		if err != nil {
			return nil, err
		}
		files = append(files, infos...)
	}
	if len(files) == 0 {
		return nil, &ConfigurationError{
			Reason: fmt.Sprintf("no input files matched %v", d.Config.Inputs),
		}
	}

	perFile := make([][][]byte, len(files))
	var group errgroup.Group
	group.SetLimit(d.Config.MaxConcurrency)
	for i, file := range files {
		i, file := i, file
		group.Go(func() error {
			reader, err := fs.OpenReader(file.Name)
			if err != nil {
				return err
			}
			defer reader.Close()

			scanner := bufio.NewScanner(reader)
			scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
			var lines [][]byte
			for scanner.Scan() {
				line := make([]byte, len(scanner.Bytes()))
				copy(line, scanner.Bytes())
				lines = append(lines, line)
				atomic.AddInt64(&d.bytesRead, int64(len(line))+1)
			}
			if err := scanner.Err(); err != nil {
				return err
			}
			perFile[i] = lines
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var lines [][]byte
	for _, fileLines := range perFile {
		lines = append(lines, fileLines...)
	}
	return lines, nil
}

// writeOutput materializes the final encoded lines as part files in the
// working location, compressed with the configured codec if any.
func (d *Driver) writeOutput(fs mrfs.FileSystem, lines [][]byte) error {
	numParts := d.Config.NumOutputParts
	if numParts < 1 {
		numParts = 1
	}
	if numParts > len(lines) && len(lines) > 0 {
		numParts = len(lines)
	}

	for part := 0; part < numParts; part++ {
		lo := part * len(lines) / numParts
		hi := (part + 1) * len(lines) / numParts

		path := fs.Join(d.Config.WorkingLocation, fmt.Sprintf("part-%05d", part))
		writer, finalPath, err := mrfs.OpenCodecWriter(fs, path, d.Config.CompressionCodec)
		if err != nil {
			return err
		}

		for _, line := range lines[lo:hi] {
			n, err := writer.Write(line)
			if err == nil {
				_, err = writer.Write([]byte{'\n'})
			}
			if err != nil {
				writer.Close()
				return err
			}
			atomic.AddInt64(&d.bytesWritten, int64(n)+1)
		}
		if err := writer.Close(); err != nil {
			return err
		}
		log.Debugf("Wrote output segment %s", finalPath)
	}
	return nil
}

// run executes the configured step range end to end
func (d *Driver) run() error {
	if len(d.Config.Inputs) == 0 {
		return &ConfigurationError{Reason: "no inputs"}
	}

	fs := mrfs.InferFilesystem(d.Config.Inputs[0])

	log.Infof("Starting run %s (%d steps declared)", d.runID, d.plan.NumSteps())

	lines, err := d.readInputs(fs)
	if err != nil {
		return err
	}
	log.Debugf("Read %d input records", len(lines))

	eng := engine.New(
		engine.WithParallelism(d.Config.Parallelism),
		engine.WithMaxConcurrency(d.Config.MaxConcurrency),
	)

	var bar *pb.ProgressBar
	harnessOptions := []HarnessOption{
		WithEngine(eng),
		WithStepCallback(func(int) { bar.Increment() }),
	}
	if d.Config.StartStep >= 0 {
		harnessOptions = append(harnessOptions, WithStartStep(d.Config.StartStep))
	}
	if d.Config.EndStep >= 0 {
		harnessOptions = append(harnessOptions, WithEndStep(d.Config.EndStep))
	}
	if d.Config.SkipBadRecords {
		harnessOptions = append(harnessOptions, WithPermissiveDecode())
	}

	harness, err := NewHarness(d.plan, harnessOptions...)
	if err != nil {
		return err
	}

	rng := harness.Range()
	bar = pb.New(rng.End - rng.Start).Prefix("Steps").Start()

	output, err := harness.Run(lines)
	bar.Finish()
	if err != nil {
		return err
	}

	if err := d.writeOutput(fs, output); err != nil {
		return err
	}

	log.Infof("Run %s - Bytes Read:\t%s", d.runID, humanize.Bytes(uint64(d.bytesRead)))
	log.Infof("Run %s - Bytes Written:\t%s", d.runID, humanize.Bytes(uint64(d.bytesWritten)))

	return nil
}

var (
	jobName          = flag.String("job", "", "Registered `name` of the job to run")
	startStep        = flag.Int("start-step", -1, "First step of the plan to execute")
	endStep          = flag.Int("end-step", -1, "Step index to stop before")
	compressionCodec = flag.String("compression-codec", "", "Compression `codec` for output segments")
	jobConfFlags     = flag.StringArray("jobconf", nil, "Passthrough `key=value` option for the job (repeatable)")
	skipBadRecords   = flag.Bool("skip-bad-records", false, "Drop undecodable input lines instead of failing")
	outputDir        = flag.StringP("out", "o", "", "Output `directory` (can be local or in S3)")
	verbose          = flag.BoolP("verbose", "v", false, "Output verbose logs")
)

// Main starts the Driver, running the configured step range and exiting
// non-zero on failure.
func (d *Driver) Main() {
	if viper.GetBool("verbose") {
		log.SetLevel(log.DebugLevel)
	}

	d.Config.Inputs = append(d.Config.Inputs, flag.Args()...)
	if *outputDir != "" {
		d.Config.WorkingLocation = *outputDir
	}
	if *startStep >= 0 {
		d.Config.StartStep = *startStep
	}
	if *endStep >= 0 {
		d.Config.EndStep = *endStep
	}
	if *compressionCodec != "" {
		d.Config.CompressionCodec = *compressionCodec
	}
	if *skipBadRecords {
		d.Config.SkipBadRecords = true
	}

	start := time.Now()
	if err := d.run(); err != nil {
		log.Fatalf("Job failed: %v", err)
	}
	fmt.Printf("Job Execution Time: %s\n", time.Since(start))
}

// HarnessMain resolves a job by its registered name from the --job flag,
// builds its plan with the --jobconf passthrough options, and runs it. This
// is the entry point for binaries that register several jobs and pick one at
// submission time.
func HarnessMain() {
	c := newConfig()

	if *jobName == "" {
		log.Fatalf("No job specified; registered jobs: %v", RegisteredJobs())
	}

	plan, err := ResolveJob(*jobName, parseJobConf(*jobConfFlags))
	if err != nil {
		log.Fatalf("Cannot resolve job %q: %v", *jobName, err)
	}

	d := &Driver{
		plan:   plan,
		Config: c,
		runID:  uuid.NewString(),
	}
	d.Main()
}

func parseJobConf(flags []string) JobConf {
	conf := make(JobConf, len(flags))
	for _, entry := range flags {
		key, value, found := strings.Cut(entry, "=")
		if !found {
			value = "true"
		}
		conf[key] = value
	}
	return conf
}
