package node

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/mantlenetworkio/feesweep/op-service/eth"
)

const (
	// DefaultTransactionSlots is the state keeper default, restored on teardown.
	DefaultTransactionSlots = 8192
	// PinnedTransactionSlots forces one transaction per batch while prices are overridden.
	PinnedTransactionSlots = 1
)

const (
	EnvEnforcedL1GasPrice   = "ETH_SENDER_GAS_ADJUSTER_INTERNAL_ENFORCED_L1_GAS_PRICE"
	EnvEnforcedPubdataPrice = "ETH_SENDER_GAS_ADJUSTER_INTERNAL_ENFORCED_PUBDATA_PRICE"
	EnvTransactionSlots     = "CHAIN_STATE_KEEPER_TRANSACTION_SLOTS"
)

var (
	keyEnforcedL1GasPrice   = []string{"eth", "gas_adjuster", "internal_enforced_l1_gas_price"}
	keyEnforcedPubdataPrice = []string{"eth", "gas_adjuster", "internal_enforced_pubdata_price"}
	keyTransactionSlots     = []string{"state_keeper", "transaction_slots"}
)

// Overlay is the set of fee overrides a node is started with. A nil price keeps the node default.
type Overlay struct {
	L1GasPrice   *eth.ETH
	PubdataPrice *eth.ETH
}

// PriceOverlay overrides both the L1 gas price and the pubdata price.
func PriceOverlay(l1GasPrice, pubdataPrice eth.ETH) Overlay {
	return Overlay{L1GasPrice: &l1GasPrice, PubdataPrice: &pubdataPrice}
}

func (o Overlay) IsDefault() bool {
	return o.L1GasPrice == nil && o.PubdataPrice == nil
}

// TransactionSlots is the slot count the node runs with under this overlay.
func (o Overlay) TransactionSlots() int {
	if o.IsDefault() {
		return DefaultTransactionSlots
	}
	return PinnedTransactionSlots
}

func (o Overlay) String() string {
	if o.IsDefault() {
		return "default"
	}
	return fmt.Sprintf("l1GasPrice=%s pubdataPrice=%s", priceString(o.L1GasPrice), priceString(o.PubdataPrice))
}

func priceString(p *eth.ETH) string {
	if p == nil {
		return "default"
	}
	return p.String()
}

// OverlayWriter makes an overlay visible to the next node process.
type OverlayWriter interface {
	// Apply persists the overlay and returns extra environment entries for the process.
	Apply(o Overlay) ([]string, error)
	// Restore removes the enforced prices and resets the slot count to the default.
	Restore() error
}

// EnvOverlay passes the overlay through the process environment only.
type EnvOverlay struct{}

var _ OverlayWriter = EnvOverlay{}

func (EnvOverlay) Apply(o Overlay) ([]string, error) {
	var env []string
	if o.L1GasPrice != nil {
		env = append(env, EnvEnforcedL1GasPrice+"="+o.L1GasPrice.Decimal())
	}
	if o.PubdataPrice != nil {
		env = append(env, EnvEnforcedPubdataPrice+"="+o.PubdataPrice.Decimal())
	}
	env = append(env, EnvTransactionSlots+"="+strconv.Itoa(o.TransactionSlots()))
	return env, nil
}

func (EnvOverlay) Restore() error {
	return nil
}

// FileOverlay edits the node's general.yaml in place. Unrelated keys, ordering
// and comments are preserved.
type FileOverlay struct {
	Fs   afero.Fs
	Path string
}

var _ OverlayWriter = (*FileOverlay)(nil)

func (f *FileOverlay) Apply(o Overlay) ([]string, error) {
	return nil, f.edit(func(root *yaml.Node) {
		setOrDelete(root, keyEnforcedL1GasPrice, o.L1GasPrice)
		setOrDelete(root, keyEnforcedPubdataPrice, o.PubdataPrice)
		setScalar(root, keyTransactionSlots, strconv.Itoa(o.TransactionSlots()), "!!int")
	})
}

func (f *FileOverlay) Restore() error {
	return f.edit(func(root *yaml.Node) {
		deleteKey(root, keyEnforcedL1GasPrice)
		deleteKey(root, keyEnforcedPubdataPrice)
		setScalar(root, keyTransactionSlots, strconv.Itoa(DefaultTransactionSlots), "!!int")
	})
}

// Current reads back the overlay and slot count the file holds.
func (f *FileOverlay) Current() (o Overlay, slots int, err error) {
	root, err := f.read()
	if err != nil {
		return Overlay{}, 0, err
	}
	if o.L1GasPrice, err = lookupPrice(root, keyEnforcedL1GasPrice); err != nil {
		return Overlay{}, 0, err
	}
	if o.PubdataPrice, err = lookupPrice(root, keyEnforcedPubdataPrice); err != nil {
		return Overlay{}, 0, err
	}
	slots = DefaultTransactionSlots
	if n := lookup(root, keyTransactionSlots); n != nil {
		if slots, err = strconv.Atoi(n.Value); err != nil {
			return Overlay{}, 0, fmt.Errorf("invalid transaction_slots %q: %w", n.Value, err)
		}
	}
	return o, slots, nil
}

func (f *FileOverlay) read() (*yaml.Node, error) {
	data, err := afero.ReadFile(f.Fs, f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read node config: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse node config %s: %w", f.Path, err)
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode}}}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("node config %s is not a mapping", f.Path)
	}
	return doc.Content[0], nil
}

func (f *FileOverlay) edit(fn func(root *yaml.Node)) error {
	root, err := f.read()
	if err != nil {
		return err
	}
	fn(root)
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}); err != nil {
		return fmt.Errorf("failed to encode node config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	tmp := f.Path + ".tmp"
	if err := afero.WriteFile(f.Fs, tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write node config: %w", err)
	}
	return f.Fs.Rename(tmp, f.Path)
}

func lookup(node *yaml.Node, path []string) *yaml.Node {
	for _, key := range path {
		if node.Kind != yaml.MappingNode {
			return nil
		}
		var next *yaml.Node
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == key {
				next = node.Content[i+1]
				break
			}
		}
		if next == nil {
			return nil
		}
		node = next
	}
	return node
}

func lookupPrice(root *yaml.Node, path []string) (*eth.ETH, error) {
	n := lookup(root, path)
	if n == nil {
		return nil, nil
	}
	var v eth.ETH
	if err := v.UnmarshalText([]byte(n.Value)); err != nil {
		return nil, fmt.Errorf("invalid price %q at %v: %w", n.Value, path, err)
	}
	return &v, nil
}

func setOrDelete(root *yaml.Node, path []string, price *eth.ETH) {
	if price == nil {
		deleteKey(root, path)
		return
	}
	setScalar(root, path, price.Decimal(), "!!int")
}

func setScalar(node *yaml.Node, path []string, value string, tag string) {
	for i, key := range path {
		var next *yaml.Node
		for j := 0; j+1 < len(node.Content); j += 2 {
			if node.Content[j].Value == key {
				next = node.Content[j+1]
				break
			}
		}
		last := i == len(path)-1
		if next == nil {
			next = &yaml.Node{Kind: yaml.MappingNode}
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, next)
		}
		if last {
			*next = yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
			return
		}
		if next.Kind != yaml.MappingNode {
			*next = yaml.Node{Kind: yaml.MappingNode}
		}
		node = next
	}
}

func deleteKey(root *yaml.Node, path []string) {
	parent := lookup(root, path[:len(path)-1])
	if parent == nil || parent.Kind != yaml.MappingNode {
		return
	}
	key := path[len(path)-1]
	for i := 0; i+1 < len(parent.Content); i += 2 {
		if parent.Content[i].Value == key {
			parent.Content = append(parent.Content[:i], parent.Content[i+2:]...)
			return
		}
	}
}
