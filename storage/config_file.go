package storage

import (
	"bufio"
	"fmt"
	"os"
	"sort"

	"github.com/relaydb/relaydb/errs"
)

// WriteConfigMirror writes the subset of runtime configuration relevant to
// reading this Tsdb directory back (compressor, resolution, page size, and
// any caller-supplied extras) as key=value lines, so a standalone reader
// of the directory does not need the full process config.
func WriteConfigMirror(path string, kv map[string]string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errs.New(errs.KindIoError, "storage.WriteConfigMirror", err)
	}
	defer f.Close()

	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := bufio.NewWriter(f)
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%s=%s\n", k, kv[k]); err != nil {
			return errs.New(errs.KindIoError, "storage.WriteConfigMirror", err)
		}
	}
	if err := w.Flush(); err != nil {
		return errs.New(errs.KindIoError, "storage.WriteConfigMirror", err)
	}

	return f.Sync()
}

// ReadConfigMirror parses a config mirror file written by
// WriteConfigMirror back into a key/value map.
func ReadConfigMirror(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.New(errs.KindIoError, "storage.ReadConfigMirror", err)
	}
	defer f.Close()

	kv := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		for i := 0; i < len(line); i++ {
			if line[i] == '=' {
				kv[line[:i]] = line[i+1:]
				break
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.New(errs.KindIoError, "storage.ReadConfigMirror", err)
	}

	return kv, nil
}
