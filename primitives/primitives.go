// Package primitives defines the shared identifier, address, and byte
// types used across the consensus core, mirroring the `primitives` crate
// of the original implementation.
package primitives

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/luxfi/ids"
)

// NodeId is the opaque identity string a participant registers with.
type NodeId string

// NodeIdx is the positional index assigned to a node within a quorum.
type NodeIdx uint16

// Address is a hex-encoded account/owner address.
type Address string

// ByteVec is a convenience alias for raw wire payloads.
type ByteVec []byte

// TxHashString is the hex digest of a transaction.
type TxHashString string

// NodeType enumerates the roles a running node may advertise itself as.
type NodeType uint8

const (
	NodeTypeFull NodeType = iota
	NodeTypeMiner
	NodeTypeValidator
	NodeTypeBootstrap
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeFull:
		return "full"
	case NodeTypeMiner:
		return "miner"
	case NodeTypeValidator:
		return "validator"
	case NodeTypeBootstrap:
		return "bootstrap"
	default:
		return "unknown"
	}
}

// QuorumKind enumerates the sub-quorum a QuorumMember belongs to.
type QuorumKind uint8

const (
	QuorumKindFarmer QuorumKind = iota
	QuorumKindHarvester
	QuorumKindMiner
)

func (k QuorumKind) String() string {
	switch k {
	case QuorumKindFarmer:
		return "farmer"
	case QuorumKindHarvester:
		return "harvester"
	case QuorumKindMiner:
		return "miner"
	default:
		return "unknown"
	}
}

// FarmerQuorumThreshold and HarvesterQuorumThreshold are the minimum
// number of distinct partial signatures required before a farmer/harvester
// quorum's artifact is considered certified.
type FarmerQuorumThreshold = int
type HarvesterQuorumThreshold = int

// QuorumSize is the cardinality of an elected sub-quorum.
type QuorumSize = int

// RawSignature is a serialized signature of unspecified scheme.
type RawSignature = []byte

// Epoch is a monotonically increasing quorum-election generation.
type Epoch = uint64

// HexString renders b as a "0x"-prefixed lowercase hex string.
func HexString(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// DefaultDataDirPath is the default on-disk directory used when a node
// config does not override it.
const DefaultDataDirPath = ".vrrb"

// String implements fmt.Stringer for Address.
func (a Address) String() string {
	return string(a)
}

// String implements fmt.Stringer for NodeId.
func (n NodeId) String() string {
	return string(n)
}

// Validate reports whether an Address looks well formed (non-empty,
// printable). Full checksum validation is left to the wallet layer, which
// is out of scope for the consensus core.
func (a Address) Validate() error {
	if len(a) == 0 {
		return fmt.Errorf("primitives: empty address")
	}
	return nil
}

// Fingerprint decodes a hex-encoded 32-byte digest (a RefHash or
// TxHashString, both Keccak256 output) into a luxfi/ids.ID, grounded on
// `protocol/quasar/bls.go`'s `ids.ToID(proposalHash[:])` call. It is the
// canonical form those digests take once they cross into anything built
// against the teacher's identifier type, such as structured log fields.
func Fingerprint(digestHex string) (ids.ID, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(digestHex, "0x"))
	if err != nil {
		return ids.ID{}, fmt.Errorf("primitives: decode digest %q: %w", digestHex, err)
	}
	id, err := ids.ToID(raw)
	if err != nil {
		return ids.ID{}, fmt.Errorf("primitives: fingerprint %q: %w", digestHex, err)
	}
	return id, nil
}
