package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const methane = `{
	"composition": [{"fluid": "METHANE", "fraction": 1}],
	"variables": {
		"pressure": {"range": {"from": 10, "to": 20}, "resolution": 10},
		"temperature": {"range": {"from": 0, "to": 10}, "resolution": 10}
	},
	"calculation": {}
}`

func TestFluids(t *testing.T) {
	out, err := execute(t, "fluids")
	require.NoError(t, err)
	assert.Contains(t, strings.Fields(out), "METHANE")
}

func TestEncode(t *testing.T) {
	dir := t.TempDir()
	req := writeFile(t, dir, "req.json", methane)
	results := writeFile(t, dir, "results.json", `{"results": [
		{"index": 0, "p_idx": 0, "t_idx": 0, "pressure": 10, "temperature": 0, "vapor_fraction": 1, "vapor_density": 0.45},
		{"index": 1, "p_idx": 0, "t_idx": 1, "pressure": 10, "temperature": 10, "vapor_fraction": 1, "vapor_density": 0.43},
		{"index": 2, "p_idx": 1, "t_idx": 0, "pressure": 20, "temperature": 0, "vapor_fraction": 1, "vapor_density": 0.9},
		{"index": 3, "p_idx": 1, "t_idx": 1, "pressure": 20, "temperature": 10, "vapor_fraction": 1, "vapor_density": 0.86}
	]}`)
	tab := filepath.Join(dir, "out.tab")

	_, err := execute(t, "encode", "--config", filepath.Join(dir, "none.ini"), "--endpoint", "pt_flash",
		"-r", req, "--results", results, "--molar-mass", "16.043", "-o", tab)
	require.NoError(t, err)

	data, err := os.ReadFile(tab)
	require.NoError(t, err)
	lines := strings.Split(string(data), "\n")
	require.Greater(t, len(lines), 3)
	assert.True(t, strings.HasPrefix(lines[0], "'METHANE-1.0000'"), lines[0])
	assert.Contains(t, lines[0], "  2  2")
	assert.Contains(t, string(data), "GAS DENSITY (KG/M3)")
}

// gasDensity returns the values of the GAS DENSITY block of a TAB file.
func gasDensity(t *testing.T, tab string) []string {
	t.Helper()
	lines := strings.Split(tab, "\n")
	for k, line := range lines {
		if strings.HasPrefix(line, " GAS DENSITY (KG/M3)") {
			var values []string
			for _, next := range lines[k+1:] {
				if !strings.HasPrefix(next, "    ") {
					break
				}
				values = append(values, strings.Fields(next)...)
			}
			return values
		}
	}
	t.Fatalf("no GAS DENSITY block in\n%s", tab)
	return nil
}

func TestEncodeSparseResults(t *testing.T) {
	const eight, zero = ".800000E+01", ".000000E+00"
	sparseRequest := strings.Replace(methane, `"to": 20}`, `"to": 30}`, 1)

	tests := []struct {
		name    string
		request string
		results string
		header  string
		want    []string
	}{
		{
			name:    "whole isobar failed",
			request: sparseRequest,
			results: `[
				{"p_idx": 0, "t_idx": 0, "pressure": 10, "temperature": 0, "vapor_density": 0.5},
				{"p_idx": 0, "t_idx": 1, "pressure": 10, "temperature": 10, "vapor_density": 0.5},
				{"p_idx": 2, "t_idx": 0, "pressure": 30, "temperature": 0, "vapor_density": 0.5},
				{"p_idx": 2, "t_idx": 1, "pressure": 30, "temperature": 10, "vapor_density": 0.5}
			]`,
			header: "    3  2",
			want:   []string{eight, eight, zero, zero, eight, eight},
		},
		{
			name:    "flat index only",
			request: methane,
			results: `[{"index": 0, "vapor_density": 0.5}, {"index": 3, "vapor_density": 0.5}]`,
			header:  "    2  2",
			want:    []string{eight, zero, zero, eight},
		},
		{
			name:    "axis values only",
			request: methane,
			results: `{"results": [{"pressure": 20, "temperature": 0, "vapor_density": {"value": 0.5, "unit": "mol/L"}}]}`,
			header:  "    2  2",
			want:    []string{zero, zero, eight, zero},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			req := writeFile(t, dir, "req.json", tt.request)
			results := writeFile(t, dir, "results.json", tt.results)

			out, err := execute(t, "encode", "--config", filepath.Join(dir, "none.ini"), "--endpoint", "pt_flash",
				"-r", req, "--results", results, "--molar-mass", "16")
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(out, "'METHANE-1.0000'"+tt.header), strings.SplitN(out, "\n", 2)[0])
			assert.Equal(t, tt.want, gasDensity(t, out))
		})
	}
}

func TestRunWritesTab(t *testing.T) {
	dir := t.TempDir()
	req := writeFile(t, dir, "req.json", methane)
	out, err := execute(t, "run", "--config", filepath.Join(dir, "none.ini"), "--endpoint", "pt_flash", "-r", req)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "'METHANE-1.0000'"), out)
	assert.Contains(t, out, "LIQUID DENSITY")
}

func TestUnknownEndpoint(t *testing.T) {
	dir := t.TempDir()
	req := writeFile(t, dir, "req.json", methane)
	_, err := execute(t, "run", "--endpoint", "xy_flash", "-r", req)
	require.Error(t, err)
}

func TestToken(t *testing.T) {
	t.Setenv("TOKEN_KEY", "k3y")
	dir := t.TempDir()
	out, err := execute(t, "token", "--config", filepath.Join(dir, "none.ini"), "--subject", "ops", "--ttl", "1h")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "."), 3)
}
