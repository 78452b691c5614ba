package dump

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
)

// IterateDumps iterates over all dumps collected by the Creator model in the
// specified directory, and passes ID and Reader of each dump into f.
func IterateDumps(dir string, f func(ID, *Reader)) error {
	var id ID
	var streams dumpStreams

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, e error) error {
		if errors.Is(e, fs.ErrNotExist) {
			return nil
		}
		if e != nil {
			return e
		}

		if d.IsDir() {
			return nil
		}

		name := d.Name()

		if !strings.HasSuffix(name, epochsFileSuffix) {
			return nil
		}

		err := id.decodeString(name)
		if err != nil {
			return fmt.Errorf("decode dump ID from file name '%s': %w", name, err)
		}

		err = initDumpStreams(&streams, filepath.Dir(path), id, true)
		if err != nil {
			return fmt.Errorf("init dump streams ('%s'): %w", name, err)
		}

		var r Reader

		err = r.fromDumpStreams(streams.epochs, streams.nodes)
		streams.close()
		if err != nil {
			return fmt.Errorf("init dump reader ('%s'): %w", name, err)
		}

		f(id, &r)

		return nil
	})
}

// Reader reads NodeList state collected in the superior dump.
type Reader struct {
	epochs []Epoch
	nodes  []Node
}

func (x *Reader) fromDumpStreams(rEpochs, rNodes io.Reader) error {
	err := json.NewDecoder(rEpochs).Decode(&x.epochs)
	if err != nil {
		return fmt.Errorf("decode epochs from JSON: %w", err)
	}

	_csv := csv.NewReader(rNodes)
	_csv.FieldsPerRecord = nodeFields
	_csv.ReuseRecord = true

	for {
		rec, err := _csv.Read()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read next CSV record: %w", err)
		}

		var n Node

		// out-of-range safety guaranteed by csv settings
		err = n.fromRecord(rec)
		if err != nil {
			return fmt.Errorf("decode node record: %w", err)
		}

		x.nodes = append(x.nodes, n)
	}
}

// IterateEpochs passes all epochs from the superior dump into f.
func (x *Reader) IterateEpochs(f func(Epoch)) {
	for i := range x.epochs {
		f(x.epochs[i])
	}
}

// IterateNodes passes all node records from the superior dump into f.
func (x *Reader) IterateNodes(f func(Node)) {
	for i := range x.nodes {
		f(x.nodes[i])
	}
}
