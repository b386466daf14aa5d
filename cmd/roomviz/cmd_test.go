package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePoints(t *testing.T) {
	pts, err := parsePoints([]string{"10,20", "30,40", "50, 60"})
	require.NoError(t, err)
	require.Equal(t, []float64{10, 20, 30, 40, 50, 60}, pts)

	_, err = parsePoints([]string{"10,x"})
	require.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"validate", "--width", "200", "--height", "100", "0,0", "100,0", "100,100", "0,100"})
	require.NoError(t, rootCmd.Execute())
	require.Contains(t, out.String(), `"valid": true`)

	out.Reset()
	rootCmd.SetArgs([]string{"validate", "--width", "200", "--height", "100", "0,0", "10,0", "10,10"})
	err := rootCmd.Execute()
	require.ErrorContains(t, err, "too small")
}
