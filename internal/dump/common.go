package dump

import (
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ID is a unique identifier of the dump prepared according to the model
// described in the current package.
type ID struct {
	// Label of the dump source (e.g. testnet, mainnet).
	Label string
	// Blockchain height at which the state was pulled.
	Block uint64
}

// String returns hyphen-separated ID fields.
func (x ID) String() string {
	return x.Label + sep + strconv.FormatUint(x.Block, 10)
}

// decodes ID fields from the dump file name '<label>-<block>-<kind>'. Label
// may contain separators itself.
func (x *ID) decodeString(s string) error {
	ss := strings.Split(s, sep)
	if len(ss) < 3 {
		return fmt.Errorf("expected '%s'-separated string with at least 3 items", sep)
	}

	blockStr := ss[len(ss)-2]

	n, err := strconv.ParseUint(blockStr, 10, 64)
	if err != nil {
		return fmt.Errorf("decode block number from '%s': %w", blockStr, err)
	}

	x.Label = strings.Join(ss[:len(ss)-2], sep)
	x.Block = n

	return nil
}

// Epoch is a JSON-encoded epoch record.
type Epoch struct {
	ID        *big.Int         `json:"id"`
	N         *big.Int         `json:"n"`
	K         *big.Int         `json:"k"`
	T         *big.Int         `json:"t"`
	NodeList  []common.Address `json:"nodeList"`
	PrevEpoch *big.Int         `json:"prevEpoch"`
	NextEpoch *big.Int         `json:"nextEpoch"`
	// status of the transition from the previous epoch
	PssStatus *big.Int `json:"pssStatus"`
}

// Node is a node record registered in the particular epoch.
type Node struct {
	Epoch              *big.Int
	Address            common.Address
	DeclaredIP         string
	Position           *big.Int
	PubKx              *big.Int
	PubKy              *big.Int
	TMP2PListenAddress string
	P2PListenAddress   string
}

// number of CSV columns per Node.
const nodeFields = 8

func (x Node) record() []string {
	return []string{
		x.Epoch.String(),
		x.Address.Hex(),
		x.DeclaredIP,
		x.Position.String(),
		x.PubKx.String(),
		x.PubKy.String(),
		x.TMP2PListenAddress,
		x.P2PListenAddress,
	}
}

func (x *Node) fromRecord(rec []string) error {
	var err error

	if x.Epoch, err = decimal(rec[0], "epoch"); err != nil {
		return err
	}

	if !common.IsHexAddress(rec[1]) {
		return fmt.Errorf("invalid node address '%s'", rec[1])
	}
	x.Address = common.HexToAddress(rec[1])
	x.DeclaredIP = rec[2]

	if x.Position, err = decimal(rec[3], "position"); err != nil {
		return err
	}
	if x.PubKx, err = decimal(rec[4], "public key X"); err != nil {
		return err
	}
	if x.PubKy, err = decimal(rec[5], "public key Y"); err != nil {
		return err
	}

	x.TMP2PListenAddress = rec[6]
	x.P2PListenAddress = rec[7]

	return nil
}

func decimal(s, name string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s '%s'", name, s)
	}
	return v, nil
}

// dumpStreams groups data streams for epochs and nodes.
type dumpStreams struct {
	epochs, nodes io.ReadWriteCloser

	pathEpochs, pathNodes string
}

// close closes all streams.
func (x *dumpStreams) close() {
	_ = x.nodes.Close()
	_ = x.epochs.Close()
}

const (
	// word separator used in dump file naming
	sep = "-"
	// suffix of file with epochs
	epochsFileSuffix = "epochs.json"
	// suffix of file with nodes
	nodesFileSuffix = "nodes.csv"
)

// initDumpStreams opens data streams for the dump files located in the
// specified directory. If read flag is set, streams are read-only. Otherwise,
// files must not exist, and streams are write only.
func initDumpStreams(d *dumpStreams, dir string, id ID, read bool) error {
	var err error

	pathNodes := filepath.Join(dir, strings.Join([]string{id.String(), nodesFileSuffix}, sep))
	if !read {
		if err = checkFileNotExists(pathNodes); err != nil {
			return err
		}
	}

	pathEpochs := filepath.Join(dir, strings.Join([]string{id.String(), epochsFileSuffix}, sep))
	if !read {
		if err = checkFileNotExists(pathEpochs); err != nil {
			return err
		}
	}

	var flag int
	var perm os.FileMode

	if read {
		flag = os.O_RDONLY
	} else {
		flag = os.O_CREATE | os.O_WRONLY
		perm = 0600
	}

	d.pathEpochs, d.pathNodes = pathEpochs, pathNodes

	d.nodes, err = os.OpenFile(pathNodes, flag, perm)
	if err != nil {
		return fmt.Errorf("open file with nodes: %w", err)
	}

	d.epochs, err = os.OpenFile(pathEpochs, flag, perm)
	if err != nil {
		_ = d.nodes.Close()
		if !read {
			_ = os.Remove(pathNodes)
		}
		return fmt.Errorf("open file with epochs: %w", err)
	}

	return nil
}

// checkFileNotExists checks that there is no file at the specified path.
func checkFileNotExists(p string) error {
	_, err := os.Stat(p)
	if !os.IsNotExist(err) {
		if err == nil {
			err = os.ErrExist
		}
		return fmt.Errorf("file '%s' absence check failed: %w", p, err)
	}
	return nil
}
