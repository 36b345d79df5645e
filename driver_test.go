package mrjob

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDriver(plan *JobPlan, configure func(*config)) *Driver {
	c := &config{
		WorkingLocation: ".",
		Parallelism:     3,
		MaxConcurrency:  3,
		StartStep:       -1,
		EndStep:         -1,
		NumOutputParts:  1,
	}
	configure(c)
	return &Driver{plan: plan, Config: c, runID: "test-run"}
}

func writeInputFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDriverRunsWordCountEndToEnd(t *testing.T) {
	dir := t.TempDir()
	input := writeInputFile(t, dir, "input.txt", "one fish\ntwo fish\nred fish\nblue fish\n")
	outDir := filepath.Join(dir, "out")

	plan := wordCountPlan(t, nil, true)
	d := newTestDriver(plan, func(c *config) {
		c.Inputs = []string{input}
		c.WorkingLocation = outDir
	})
	require.NoError(t, d.run())

	content, err := os.ReadFile(filepath.Join(outDir, "part-00000"))
	require.NoError(t, err)

	counts := decodeCounts(t, plan.OutputProtocol(), splitLines(string(content)))
	assert.Equal(t, map[string]float64{
		"one":  1,
		"two":  1,
		"red":  1,
		"blue": 1,
		"fish": 4,
	}, counts)
}

func TestDriverCompressesOutputWithCodec(t *testing.T) {
	dir := t.TempDir()
	input := writeInputFile(t, dir, "input.txt", "fa la la la la\nla la la la\n")
	outDir := filepath.Join(dir, "out")

	plan := wordCountPlan(t, nil, true)
	d := newTestDriver(plan, func(c *config) {
		c.Inputs = []string{input}
		c.WorkingLocation = outDir
		c.CompressionCodec = "org.apache.hadoop.io.compress.GzipCodec"
	})
	require.NoError(t, d.run())

	matches, err := filepath.Glob(filepath.Join(outDir, "part*.gz"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	file, err := os.Open(matches[0])
	require.NoError(t, err)
	defer file.Close()
	unzip, err := gzip.NewReader(file)
	require.NoError(t, err)
	content, err := io.ReadAll(unzip)
	require.NoError(t, err)

	counts := decodeCounts(t, plan.OutputProtocol(), splitLines(string(content)))
	assert.Equal(t, map[string]float64{"fa": 1, "la": 8}, counts)
}

func TestDriverRejectsUnknownCodec(t *testing.T) {
	dir := t.TempDir()
	input := writeInputFile(t, dir, "input.txt", "a b\n")

	d := newTestDriver(wordCountPlan(t, nil, false), func(c *config) {
		c.Inputs = []string{input}
		c.WorkingLocation = filepath.Join(dir, "out")
		c.CompressionCodec = "org.example.NoSuchCodec"
	})
	assert.Error(t, d.run())
}

func TestDriverFailsWithoutInputs(t *testing.T) {
	d := newTestDriver(wordCountPlan(t, nil, false), func(c *config) {})

	var confErr *ConfigurationError
	require.ErrorAs(t, d.run(), &confErr)
}

func TestDriverReadsMultipleInputFiles(t *testing.T) {
	dir := t.TempDir()
	writeInputFile(t, dir, "a.txt", "one fish\ntwo fish\n")
	writeInputFile(t, dir, "b.txt", "red fish\nblue fish\n")
	outDir := filepath.Join(dir, "out")

	plan := wordCountPlan(t, nil, true)
	d := newTestDriver(plan, func(c *config) {
		c.Inputs = []string{filepath.Join(dir, "*.txt")}
		c.WorkingLocation = outDir
	})
	require.NoError(t, d.run())

	content, err := os.ReadFile(filepath.Join(outDir, "part-00000"))
	require.NoError(t, err)
	counts := decodeCounts(t, plan.OutputProtocol(), splitLines(string(content)))
	assert.Equal(t, float64(4), counts["fish"])
}

func TestDriverSplitsOutputParts(t *testing.T) {
	dir := t.TempDir()
	input := writeInputFile(t, dir, "input.txt", "one fish\ntwo fish\nred fish\nblue fish\n")
	outDir := filepath.Join(dir, "out")

	plan := wordCountPlan(t, nil, true)
	d := newTestDriver(plan, func(c *config) {
		c.Inputs = []string{input}
		c.WorkingLocation = outDir
		c.NumOutputParts = 2
	})
	require.NoError(t, d.run())

	matches, err := filepath.Glob(filepath.Join(outDir, "part-*"))
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	var lines []string
	for _, match := range matches {
		content, err := os.ReadFile(match)
		require.NoError(t, err)
		trimmed := strings.TrimSuffix(string(content), "\n")
		if trimmed != "" {
			lines = append(lines, strings.Split(trimmed, "\n")...)
		}
	}
	assert.Len(t, lines, 5)
}

func TestParseJobConf(t *testing.T) {
	conf := parseJobConf([]string{"chars", "ignore=to", "level=2"})
	assert.Equal(t, JobConf{
		"chars":  "true",
		"ignore": "to",
		"level":  "2",
	}, conf)
}
