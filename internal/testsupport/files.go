package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes content to path, creating parent directories as needed.
func WriteFile(t testing.TB, path string, content []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteImages populates dir with count placeholder png files and returns
// their names in creation order.
func WriteImages(t testing.TB, dir string, count int) []string {
	t.Helper()

	names := make([]string, 0, count)
	for i := 0; i < count; i++ {
		name := fmt.Sprintf("input_%02d.png", i)
		WriteFile(t, filepath.Join(dir, name), []byte(fmt.Sprintf("png-%02d", i)))
		names = append(names, name)
	}
	return names
}
