package testing

import (
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// CompareResults checks results against testdata/<prefix>.json. The actual output is kept
// next to it as <prefix>.output.json so that a changed golden file can be reviewed and copied.
func CompareResults(t *testing.T, results any, filenamePrefix string) {
	bs, err := json.MarshalIndent(results, "", "  ")
	require.Nil(t, err)
	outputName := fmt.Sprintf("testdata/%v.output.json", filenamePrefix)
	err = os.WriteFile(outputName, bs, 0644)
	require.Nil(t, err)
	expected, err := os.ReadFile(fmt.Sprintf("testdata/%v.json", filenamePrefix))
	require.Nil(t, err)
	require.JSONEq(t, string(expected), string(bs))
}
