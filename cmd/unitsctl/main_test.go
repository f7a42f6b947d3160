package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polisai/polis-units/pkg/config"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRootCmdFlags(t *testing.T) {
	cmd := newRootCmd()

	for _, name := range []string{"config", "log-level", "catalog", "max-depth", "equivalencies", "no-equivalencies"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing flag %s", name)
	}
	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"convert", "compose", "equivalents", "equivalent", "decompose", "stats"}, names)
}

func TestConvertCmd(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{
			name:     "scale",
			args:     []string{"convert", "km", "m", "2"},
			expected: "2 km = 2000 m\n",
		},
		{
			name:     "default value",
			args:     []string{"convert", "km", "m"},
			expected: "1 km = 1000 m\n",
		},
		{
			name:     "several values",
			args:     []string{"convert", "h", "min", "1", "0.5"},
			expected: "1 h = 60 min\n0.5 h = 30 min\n",
		},
		{
			name:     "enabled equivalency",
			args:     []string{"convert", "deg_C", "K", "0"},
			expected: "0 deg_C = 273.15 K\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := run(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestConvertCmdEquivalencyFlags(t *testing.T) {
	out, _, err := run(t, "convert", "-e", "spectral", "nm", "THz", "500")
	require.NoError(t, err)
	assert.Contains(t, out, "500 nm = 599.5849")

	_, _, err = run(t, "convert", "nm", "THz", "500")
	require.Error(t, err)

	_, _, err = run(t, "convert", "--no-equivalencies", "deg_C", "K")
	require.Error(t, err)

	_, _, err = run(t, "convert", "-e", "spectral", "--no-equivalencies", "nm", "THz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")

	_, _, err = run(t, "convert", "-e", "optical", "nm", "THz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown equivalency set "optical"`)
}

func TestConvertCmdErrors(t *testing.T) {
	_, _, err := run(t, "convert", "m", "s")
	require.Error(t, err)
	assert.Equal(t, "'m' (length) and 's' (time) are not convertible", err.Error())

	_, _, err = run(t, "convert", "km", "m", "many")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid value "many"`)

	_, _, err = run(t, "convert", "furlong", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unit "furlong" is not defined`)

	_, _, err = run(t, "convert", "km")
	require.Error(t, err)
}

func TestComposeCmd(t *testing.T) {
	out, _, err := run(t, "compose", "Pa", "--vocabulary", "N,m")
	require.NoError(t, err)
	assert.Equal(t, "N m^-2\n", out)

	_, _, err = run(t, "compose", "kg", "--vocabulary", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot represent unit kg")
}

func TestDecomposeCmd(t *testing.T) {
	out, _, err := run(t, "decompose", "N")
	require.NoError(t, err)
	assert.Equal(t, "unit:          N\ndecomposed:    kg m s^-2\nphysical type: force\n", out)

	out, _, err = run(t, "decompose", "kph")
	require.NoError(t, err)
	assert.Contains(t, out, "physical type: speed/velocity\n")
}

func TestEquivalenceCmds(t *testing.T) {
	out, _, err := run(t, "equivalent", "km", "mi")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	out, _, err = run(t, "equivalent", "m", "s")
	require.NoError(t, err)
	assert.Equal(t, "false\n", out)

	out, _, err = run(t, "equivalent", "rad", "", "-e", "dimensionless_angles")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	out, _, err = run(t, "equivalents", "ft")
	require.NoError(t, err)
	assert.Equal(t, "ft\nin\nm\nmi\nyd\n", out)
}

func TestStatsCmd(t *testing.T) {
	out, _, err := run(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "scope depth:      0\n")
	assert.Contains(t, out, "equivalencies:    3\n")
	assert.Contains(t, out, "aliases:          10\n")
	assert.Contains(t, out, "equivalency sets: dimensionless_angles, spectral, temperature\n")
}

func TestStatsCmdEquivalencyScopes(t *testing.T) {
	out, _, err := run(t, "stats", "-e", "spectral")
	require.NoError(t, err)
	assert.Contains(t, out, "scope depth:      1\n")
	assert.Contains(t, out, "equivalencies:    4\n")

	out, _, err = run(t, "stats", "--no-equivalencies")
	require.NoError(t, err)
	assert.Contains(t, out, "scope depth:      1\n")
	assert.Contains(t, out, "equivalencies:    0\n")
}

func TestEquivalencyFlagsPushScopes(t *testing.T) {
	a := &app{}
	cmd := newRootCmdFor(a)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"convert", "-e", "spectral", "nm", "THz", "500"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.Equal(t, 0, a.stack.Depth())

	families, err := a.metrics.Registry().Gather()
	require.NoError(t, err)
	events := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "units_scope_events_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			var key string
			for _, lp := range m.GetLabel() {
				key += lp.GetName() + "=" + lp.GetValue() + " "
			}
			events[strings.TrimSpace(key)] = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, map[string]float64{
		"event=enter status=ok": 1,
		"event=exit status=ok":  1,
	}, events)
}

func TestConfigAndCatalogFlags(t *testing.T) {
	dir := t.TempDir()
	table := filepath.Join(dir, "extra.yaml")
	require.NoError(t, os.WriteFile(table, []byte(`
units:
  - names: [furlong]
    scale: 201.168
    terms: {m: 1}
`), 0o600))
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logging:\n  level: warn\n  format: json\ncompose:\n  max_depth: 3\n"), 0o600))

	out, _, err := run(t, "--config", cfgPath, "--catalog", table, "convert", "furlong", "m")
	require.NoError(t, err)
	assert.Equal(t, "1 furlong = 201.168 m\n", out)

	_, stderr, err := run(t, "--log-level", "debug", "stats")
	require.NoError(t, err)
	assert.Contains(t, stderr, "catalog loaded")

	_, _, err = run(t, "--max-depth", "20", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_depth 20 out of range")

	_, _, err = run(t, "--log-level", "chatty", "stats")
	require.Error(t, err)
}

func TestParseValues(t *testing.T) {
	values, err := parseValues(nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, values)

	values, err = parseValues([]string{"1e3", "-2.5"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1000, -2.5}, values)

	_, err = parseValues([]string{"x"})
	assert.Error(t, err)

	assert.Equal(t, "0.001", formatFloat(1e-3))
}

func TestCatalogSource(t *testing.T) {
	yes := true
	assert.Equal(t, "builtin", catalogSource(config.CatalogConfig{}))
	assert.Equal(t, "extra.yaml", catalogSource(config.CatalogConfig{File: "extra.yaml"}))
	assert.Equal(t, "builtin+extra.yaml", catalogSource(config.CatalogConfig{File: "extra.yaml", Builtin: &yes}))
}
