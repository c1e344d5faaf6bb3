package contracts

import (
	"fmt"
	"strings"
)

// Version identifies a deployed generation of the governance contracts.
type Version uint8

const (
	V1 Version = iota + 1
	V2
)

// Versions lists every known generation, newest first.
var Versions = []Version{V2, V1}

func (v Version) String() string {
	switch v {
	case V1:
		return "v1"
	case V2:
		return "v2"
	default:
		return fmt.Sprintf("v?(%d)", uint8(v))
	}
}

// ParseVersion converts "v1"/"v2" (case-insensitive) into a Version.
func ParseVersion(s string) (Version, error) {
	switch strings.ToLower(s) {
	case "v1":
		return V1, nil
	case "v2":
		return V2, nil
	}
	return 0, fmt.Errorf("unknown contract version %q", s)
}

// Kind identifies the role of a contract within one generation.
type Kind uint8

const (
	KeysManager Kind = iota + 1
	VotingToChangeKeys
	ValidatorMetadata
	NetworkConsensus
)

// Kinds lists every contract role.
var Kinds = []Kind{KeysManager, VotingToChangeKeys, ValidatorMetadata, NetworkConsensus}

func (k Kind) String() string {
	switch k {
	case KeysManager:
		return "KeysManager"
	case VotingToChangeKeys:
		return "VotingToChangeKeys"
	case ValidatorMetadata:
		return "ValidatorMetadata"
	case NetworkConsensus:
		return "PoaNetworkConsensus"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// DescriptorKey is the field name used for this kind in the contracts JSON file.
func (k Kind) DescriptorKey() string {
	switch k {
	case KeysManager:
		return "KEYS_MANAGER_ADDRESS"
	case VotingToChangeKeys:
		return "VOTING_TO_CHANGE_KEYS_ADDRESS"
	case ValidatorMetadata:
		return "METADATA_ADDRESS"
	case NetworkConsensus:
		return "POA_NETWORK_CONSENSUS_ADDRESS"
	default:
		return ""
	}
}
