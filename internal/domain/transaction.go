package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// TransactionStatus is the consensus status name of a submitted transaction.
type TransactionStatus string

const (
	TxStatusUninitialized     TransactionStatus = "UNINITIALIZED"
	TxStatusPending           TransactionStatus = "PENDING"
	TxStatusProposing         TransactionStatus = "PROPOSING"
	TxStatusCommitting        TransactionStatus = "COMMITTING"
	TxStatusRevealing         TransactionStatus = "REVEALING"
	TxStatusAccepted          TransactionStatus = "ACCEPTED"
	TxStatusUndetermined      TransactionStatus = "UNDETERMINED"
	TxStatusFinalized         TransactionStatus = "FINALIZED"
	TxStatusCanceled          TransactionStatus = "CANCELED"
	TxStatusAppealRevealing   TransactionStatus = "APPEAL_REVEALING"
	TxStatusAppealCommitting  TransactionStatus = "APPEAL_COMMITTING"
	TxStatusReadyToFinalize   TransactionStatus = "READY_TO_FINALIZE"
	TxStatusValidatorsTimeout TransactionStatus = "VALIDATORS_TIMEOUT"
	TxStatusLeaderTimeout     TransactionStatus = "LEADER_TIMEOUT"
)

// statusByNumber follows the on-chain enum ordering.
var statusByNumber = []TransactionStatus{
	TxStatusUninitialized,
	TxStatusPending,
	TxStatusProposing,
	TxStatusCommitting,
	TxStatusRevealing,
	TxStatusAccepted,
	TxStatusUndetermined,
	TxStatusFinalized,
	TxStatusCanceled,
	TxStatusAppealRevealing,
	TxStatusAppealCommitting,
	TxStatusReadyToFinalize,
	TxStatusValidatorsTimeout,
	TxStatusLeaderTimeout,
}

// ParseTransactionStatus accepts a status name or its numeric code. The
// simulator reports freshly queued transactions as ACTIVATED, which is
// treated as PENDING.
func ParseTransactionStatus(s string) (TransactionStatus, error) {
	if s == "ACTIVATED" {
		return TxStatusPending, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n >= len(statusByNumber) {
			return "", fmt.Errorf("unknown transaction status code %d", n)
		}
		return statusByNumber[n], nil
	}
	for _, st := range statusByNumber {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown transaction status %q", s)
}

// Satisfies reports whether a transaction in status s fulfils a wait for
// want. Waiting for ACCEPTED is also satisfied by FINALIZED.
func (s TransactionStatus) Satisfies(want TransactionStatus) bool {
	if s == want {
		return true
	}
	return want == TxStatusAccepted && s == TxStatusFinalized
}

// Known reports whether s is one of the statuses the node enum defines.
func (s TransactionStatus) Known() bool {
	for _, st := range statusByNumber {
		if st == s {
			return true
		}
	}
	return false
}

// Settled reports whether the status is ACCEPTED or FINALIZED.
func (s TransactionStatus) Settled() bool {
	return s == TxStatusAccepted || s == TxStatusFinalized
}

// ReceiptData is the decoded execution payload of a transaction.
type ReceiptData struct {
	ContractAddress string `json:"contract_address,omitempty"`
}

// TxDataDecoded is the decoded transaction input.
type TxDataDecoded struct {
	ContractAddress string `json:"contractAddress,omitempty"`
}

// Receipt is the network's record of a transaction. Only the status and the
// contract address fields are interpreted; Raw keeps the full document so it
// can be persisted verbatim.
type Receipt struct {
	Hash          string
	StatusName    TransactionStatus
	Data          *ReceiptData
	TxDataDecoded *TxDataDecoded
	Raw           json.RawMessage
}

type receiptJSON struct {
	Hash          string          `json:"hash"`
	Status        json.RawMessage `json:"status"`
	StatusName    string          `json:"statusName"`
	Data          json.RawMessage `json:"data"`
	TxDataDecoded *TxDataDecoded  `json:"txDataDecoded"`
}

func (r *Receipt) UnmarshalJSON(b []byte) error {
	var aux receiptJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return fmt.Errorf("receipt: %w", err)
	}

	name := aux.StatusName
	if name == "" && len(aux.Status) > 0 {
		var s string
		if err := json.Unmarshal(aux.Status, &s); err != nil {
			// numeric status code
			s = string(bytes.TrimSpace(aux.Status))
		}
		name = s
	}
	if name != "" {
		st, err := ParseTransactionStatus(name)
		if err != nil {
			// Newer nodes add intermediate statuses; keep the name so the
			// caller sees it while polling continues.
			st = TransactionStatus(name)
		}
		r.StatusName = st
	}

	// data is an object for deployments but may be a string or null otherwise.
	if len(aux.Data) > 0 && aux.Data[0] == '{' {
		var d ReceiptData
		if err := json.Unmarshal(aux.Data, &d); err == nil {
			r.Data = &d
		}
	}

	r.Hash = aux.Hash
	r.TxDataDecoded = aux.TxDataDecoded
	r.Raw = append(json.RawMessage(nil), b...)
	return nil
}

func (r Receipt) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}
	return json.Marshal(struct {
		Hash          string            `json:"hash"`
		StatusName    TransactionStatus `json:"statusName"`
		Data          *ReceiptData      `json:"data,omitempty"`
		TxDataDecoded *TxDataDecoded    `json:"txDataDecoded,omitempty"`
	}{r.Hash, r.StatusName, r.Data, r.TxDataDecoded})
}

// ContractAddress returns the deployed contract address, preferring the
// decoded execution data over the decoded transaction input.
func (r *Receipt) ContractAddress() string {
	if r.Data != nil && r.Data.ContractAddress != "" {
		return r.Data.ContractAddress
	}
	if r.TxDataDecoded != nil {
		return r.TxDataDecoded.ContractAddress
	}
	return ""
}
