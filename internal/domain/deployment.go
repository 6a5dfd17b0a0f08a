package domain

import "time"

// DeploymentRecord is written once at the end of a successful deployment.
// The JSON field names are consumed by the frontend build.
type DeploymentRecord struct {
	Network         string    `json:"network"`
	ChainID         int64     `json:"chainId"`
	ContractAddress string    `json:"contractAddress"`
	Deployer        string    `json:"deployer"`
	TransactionHash string    `json:"transactionHash"`
	DeployedAt      time.Time `json:"deployedAt"`
	StudioURL       string    `json:"studioUrl"`
	TxURL           string    `json:"txUrl"`
}

// ReceiptSnapshot is persisted when no finality tier succeeded.
type ReceiptSnapshot struct {
	Error   string `json:"error"`
	Receipt any    `json:"receipt"`
}

// PendingReceipt stands in for a receipt that could not be fetched.
type PendingReceipt struct {
	TxHash string `json:"txHash"`
	Note   string `json:"note"`
}
