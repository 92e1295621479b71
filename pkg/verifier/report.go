package verifier

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"

	"github.com/twinbase/twinbase-dlt/pkg/types"
	"github.com/twinbase/twinbase-dlt/pkg/util"
)

// Result holds the outcome of one registry call: a value or an error
type Result[T any] struct {
	Value T
	Err   error
}

func (r Result[T]) OK() bool {
	return r.Err == nil
}

func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Err.Error()})
	}
	return json.Marshal(struct {
		Value T `json:"value"`
	}{r.Value})
}

// TwinView is the JSON form of a registry record
type TwinView struct {
	ID   string `json:"id"`
	Hash string `json:"hash"`
}

func viewOf(t types.Twin) TwinView {
	return TwinView{ID: t.Id, Hash: t.HashHex()}
}

// RegistryReport collects the record registry reads for one document
type RegistryReport struct {
	ID   string
	Hash common.Hash

	GetTwin        Result[*types.Twin]
	VerifyTwinHash Result[bool]
	GetTwins       Result[[]types.Twin]
}

// OK reports whether every call succeeded and the registry hash matches
func (r *RegistryReport) OK() bool {
	return r.GetTwin.OK() && r.GetTwins.OK() && r.VerifyTwinHash.OK() && r.VerifyTwinHash.Value
}

func (r *RegistryReport) MarshalJSON() ([]byte, error) {
	out := struct {
		ID             string             `json:"id"`
		Hash           string             `json:"hash"`
		GetTwin        Result[*TwinView]  `json:"getTwin"`
		VerifyTwinHash Result[bool]       `json:"verifyTwinHash"`
		GetTwins       Result[[]TwinView] `json:"getTwins"`
	}{
		ID:             r.ID,
		Hash:           r.Hash.Hex(),
		VerifyTwinHash: r.VerifyTwinHash,
	}

	out.GetTwin.Err = r.GetTwin.Err
	if r.GetTwin.Value != nil {
		v := viewOf(*r.GetTwin.Value)
		out.GetTwin.Value = &v
	}

	out.GetTwins.Err = r.GetTwins.Err
	if r.GetTwins.Err == nil {
		out.GetTwins.Value = make([]TwinView, 0, len(r.GetTwins.Value))
		for _, t := range r.GetTwins.Value {
			out.GetTwins.Value = append(out.GetTwins.Value, viewOf(t))
		}
	}
	return json.Marshal(out)
}

// Proof is the outcome of a tree lookup. Found with an empty Siblings slice
// means a single-leaf tree.
type Proof struct {
	Hash     common.Hash
	Root     common.Hash
	Found    bool
	Siblings []common.Hash
}

// Response renders the lookup for the HTTP API
func (p *Proof) Response() *types.ProofResponseV1 {
	resp := &types.ProofResponseV1{Hash: p.Hash.Hex(), Found: p.Found}
	if p.Found {
		resp.Proof = util.HashesToHex(p.Siblings)
		resp.Root = p.Root.Hex()
	}
	return resp
}

// MerkleReport is the outcome of verifying a document against the root registry
type MerkleReport struct {
	Hash  common.Hash
	Found bool
	Proof []common.Hash
	Root  common.Hash

	// Verified is the verifyHash result; zero when the hash was not in the tree
	Verified Result[bool]

	// OnChainRoot is the registry root, read only when the check failed
	OnChainRoot *Result[common.Hash]

	// Err is set when the tree could not be loaded or the document parsed
	Err error
}

func (m *MerkleReport) OK() bool {
	return m.Err == nil && m.Found && m.Verified.OK() && m.Verified.Value
}

// Stale reports whether the tree file's root differs from the registry root
func (m *MerkleReport) Stale() bool {
	return m.OnChainRoot != nil && m.OnChainRoot.OK() && m.OnChainRoot.Value != m.Root
}

func (m *MerkleReport) MarshalJSON() ([]byte, error) {
	out := struct {
		Hash        string               `json:"hash"`
		Found       bool                 `json:"found"`
		Proof       []string             `json:"proof,omitempty"`
		Root        string               `json:"root,omitempty"`
		Verified    *Result[bool]        `json:"verified,omitempty"`
		OnChainRoot *Result[common.Hash] `json:"onChainRoot,omitempty"`
		Stale       bool                 `json:"stale,omitempty"`
		Message     string               `json:"message,omitempty"`
		Error       string               `json:"error,omitempty"`
	}{
		Hash:        m.Hash.Hex(),
		Found:       m.Found,
		OnChainRoot: m.OnChainRoot,
		Stale:       m.Stale(),
	}
	switch {
	case m.Err != nil:
		out.Error = m.Err.Error()
	case !m.Found:
		out.Message = "hash not found in tree, contract not called"
	default:
		out.Proof = util.HashesToHex(m.Proof)
		out.Root = m.Root.Hex()
		verified := m.Verified
		out.Verified = &verified
	}
	return json.Marshal(out)
}

// Validation combines the registry and merkle reports for one document
type Validation struct {
	ID       string          `json:"id,omitempty"`
	Hash     string          `json:"hash,omitempty"`
	Success  bool            `json:"success"`
	Registry *RegistryReport `json:"registry,omitempty"`
	Merkle   *MerkleReport   `json:"merkle,omitempty"`
	Error    string          `json:"error,omitempty"`
}
