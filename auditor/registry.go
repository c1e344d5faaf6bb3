package auditor

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/screwyprof/ballotaudit/pkg/contracts"
)

//go:embed registry.schema.json
var registrySchemaJSON []byte

const registrySchemaURL = "https://ballotaudit.local/schemas/contracts.schema.json"

var registrySchema = compileRegistrySchema()

func compileRegistrySchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(registrySchemaURL, bytes.NewReader(registrySchemaJSON)); err != nil {
		panic(fmt.Sprintf("registry schema load failed: %v", err))
	}
	return c.MustCompile(registrySchemaURL)
}

// Contract names one deployed contract: its generation and its role.
type Contract struct {
	Version contracts.Version
	Kind    contracts.Kind
}

func (c Contract) String() string {
	return c.Version.String() + "/" + c.Kind.String()
}

// Registry maps contract addresses to the generation and role they serve.
// One address may serve several generations.
type Registry struct {
	byAddress  map[common.Address][]Contract
	byContract map[Contract]common.Address
}

// NewRegistry builds a registry from explicit entries.
func NewRegistry(entries map[Contract]common.Address) *Registry {
	r := &Registry{
		byAddress:  make(map[common.Address][]Contract),
		byContract: make(map[Contract]common.Address, len(entries)),
	}
	for c, addr := range entries {
		r.byContract[c] = addr
		r.byAddress[addr] = append(r.byAddress[addr], c)
	}
	for _, cs := range r.byAddress {
		sort.Slice(cs, func(i, j int) bool {
			if cs[i].Version != cs[j].Version {
				return cs[i].Version > cs[j].Version
			}
			return cs[i].Kind < cs[j].Kind
		})
	}
	return r
}

// LoadRegistry reads a JSON descriptor of the form
//
//	{"v1": {"KEYS_MANAGER_ADDRESS": "0x…", …}, "v2": {…}}
//
// and validates it before parsing any address.
func LoadRegistry(r io.Reader) (*Registry, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading descriptor: %w", ErrInvalidRegistry, err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRegistry, err)
	}
	if err := registrySchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRegistry, err)
	}

	var byVersion map[string]map[string]string
	if err := json.Unmarshal(raw, &byVersion); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRegistry, err)
	}

	entries := make(map[Contract]common.Address)
	for versionKey, addrs := range byVersion {
		version, err := contracts.ParseVersion(versionKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRegistry, err)
		}
		for _, kind := range contracts.Kinds {
			hex, ok := addrs[kind.DescriptorKey()]
			if !ok {
				continue
			}
			entries[Contract{Version: version, Kind: kind}] = common.HexToAddress(hex)
		}
	}
	return NewRegistry(entries), nil
}

// LoadRegistryFile reads the descriptor at path.
func LoadRegistryFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRegistry, err)
	}
	defer f.Close()
	return LoadRegistry(f)
}

// Lookup returns the newest contract registered at addr.
func (r *Registry) Lookup(addr common.Address) (Contract, bool) {
	cs := r.byAddress[addr]
	if len(cs) == 0 {
		return Contract{}, false
	}
	return cs[0], true
}

// Registered reports whether addr serves the given generation and role.
func (r *Registry) Registered(addr common.Address, version contracts.Version, kind contracts.Kind) bool {
	got, ok := r.byContract[Contract{Version: version, Kind: kind}]
	return ok && got == addr
}

// Address returns the address registered for a generation and role.
func (r *Registry) Address(version contracts.Version, kind contracts.Kind) (common.Address, bool) {
	addr, ok := r.byContract[Contract{Version: version, Kind: kind}]
	return addr, ok
}

// Newest returns the address of the newest generation that registers kind.
func (r *Registry) Newest(kind contracts.Kind) (common.Address, contracts.Version, bool) {
	for _, v := range contracts.Versions {
		if addr, ok := r.Address(v, kind); ok {
			return addr, v, true
		}
	}
	return common.Address{}, 0, false
}

// Len returns the number of registered contracts.
func (r *Registry) Len() int {
	return len(r.byContract)
}
