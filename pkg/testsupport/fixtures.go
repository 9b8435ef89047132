package testsupport

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// TestdataDir is where fixtures live, relative to the package under test.
const TestdataDir = "testdata"

// Testdata returns the raw contents of TestdataDir/name and fails the
// test if the file cannot be read.
func Testdata(t testing.TB, name string) []byte {
	t.Helper()

	path := filepath.Join(TestdataDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return data
}

// DecodeTestdata decodes the JSON fixture TestdataDir/name into a T.
// Unknown fields fail the test so fixtures stay in step with the types
// they describe.
func DecodeTestdata[T any](t testing.TB, name string) T {
	t.Helper()

	var out T
	dec := json.NewDecoder(bytes.NewReader(Testdata(t, name)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		t.Fatalf("decode fixture %s: %v", name, err)
	}
	return out
}
