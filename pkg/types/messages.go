package types

// ValidateRequestV1 asks the verifier service to validate a twin document.
// Exactly one of DocumentURL and Document must be set.
type ValidateRequestV1 struct {
	DocumentURL string `json:"documentUrl,omitempty"`
	Document    string `json:"document,omitempty"`
}

// ProofResponseV1 is returned by the proof lookup endpoint
type ProofResponseV1 struct {
	Hash  string   `json:"hash"`
	Found bool     `json:"found"`
	Proof []string `json:"proof,omitempty"`
	Root  string   `json:"root,omitempty"`
}

// StatusResponseV1 reports the state of the validation state machine
type StatusResponseV1 struct {
	State   string `json:"state"`
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ErrorResponseV1 struct {
	Error string `json:"error"`
}
