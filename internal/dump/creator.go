package dump

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Creator dumps NodeList contract state. Output file format:
//
//	'<label>-<block>-epochs.json': JSON array of epochs
//	'<label>-<block>-nodes.csv': CSV of nodes registered in the epochs
//
// Nodes CSV are 'epoch,address,declaredIp,position,pubKx,pubKy,tmP2PListenAddress,p2pListenAddress'
// where numbers are decimal and address is hex.
//
// Use IterateDumps to access existing dumps.
type Creator struct {
	dumpStreams

	epochs []Epoch

	nodesCSV *csv.Writer
}

// NewCreator returns Creator which dumps contract state into given directory.
// The dump is identified by specified ID. Resulting Creator should be closed
// when finished working with it.
//
// NewCreator fails if dump with provided ID already exists.
func NewCreator(dir string, id ID) (*Creator, error) {
	var res Creator

	err := initDumpStreams(&res.dumpStreams, dir, id, false)
	if err != nil {
		return nil, err
	}

	res.nodesCSV = csv.NewWriter(res.dumpStreams.nodes)

	return &res, nil
}

// AddEpoch adds given epoch to the resulting dump. After all needed epochs
// are added, they should be flushed via Flush method.
func (x *Creator) AddEpoch(e Epoch) {
	x.epochs = append(x.epochs, e)
}

// AddNode writes given node record into the dump.
func (x *Creator) AddNode(n Node) error {
	err := x.nodesCSV.Write(n.record())
	if err != nil {
		return fmt.Errorf("write node as CSV data: %w", err)
	}

	return nil
}

// Flush flushes accumulated dump to the file system.
func (x *Creator) Flush() error {
	jEnc := json.NewEncoder(x.dumpStreams.epochs)
	jEnc.SetIndent("", " ")

	err := jEnc.Encode(x.epochs)
	if err != nil {
		return fmt.Errorf("encode epochs to JSON: %w", err)
	}

	x.nodesCSV.Flush()

	err = x.nodesCSV.Error()
	if err != nil {
		return fmt.Errorf("flush CSV data: %w", err)
	}

	return nil
}

// Close releases underlying resources of the Creator and makes it unusable.
func (x *Creator) Close() {
	x.close()
}

// Abort closes the Creator and removes the dump files, so the dump with the
// same ID can be created again. Abort must not be mixed with Close.
func (x *Creator) Abort() error {
	x.close()

	errEpochs := os.Remove(x.pathEpochs)
	errNodes := os.Remove(x.pathNodes)

	err := errors.Join(errEpochs, errNodes)
	if err != nil {
		return fmt.Errorf("remove incomplete dump: %w", err)
	}

	return nil
}
