package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/segmentio/encoding/json"

	"github.com/onnwee/forcegraph/internal/graph"
)

// readGraph loads a graph from JSON, or TOML when the file ends in .toml.
// "-" reads JSON from stdin.
func readGraph(path string, stdin io.Reader) (graph.Graph, error) {
	var g graph.Graph
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.DecodeFile(path, &g); err != nil {
			return g, fmt.Errorf("decode %s: %w", path, err)
		}
		return g, nil
	}

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return g, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &g); err != nil {
		return g, fmt.Errorf("decode %s: %w", path, err)
	}
	return g, nil
}

// readParams overlays a TOML params file on base. Unknown keys are an
// error so typos do not silently fall back to defaults.
func readParams(path string, base graph.Params) (graph.Params, error) {
	p := base
	md, err := toml.DecodeFile(path, &p)
	if err != nil {
		return base, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return base, fmt.Errorf("%s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return p, nil
}

// writeJSON writes v to path, or to w when path is empty or "-".
func writeJSON(path string, w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" || path == "-" {
		_, err = w.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
