package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/genmarket/internal/domain"
)

// DeploymentStore implements domain.DeploymentStore using PostgreSQL.
type DeploymentStore struct {
	pool *pgxpool.Pool
}

// NewDeploymentStore creates a DeploymentStore backed by the given pool.
func NewDeploymentStore(pool *pgxpool.Pool) *DeploymentStore {
	return &DeploymentStore{pool: pool}
}

const deploymentColumns = `network, chain_id, contract_address, deployer,
	transaction_hash, studio_url, tx_url, deployed_at`

// Save records a deployment. Saving the same transaction hash twice is a
// no-op.
func (s *DeploymentStore) Save(ctx context.Context, rec domain.DeploymentRecord) error {
	const query = `
		INSERT INTO deployments (` + deploymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (transaction_hash) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		rec.Network, rec.ChainID, rec.ContractAddress, rec.Deployer,
		rec.TransactionHash, rec.StudioURL, rec.TxURL, rec.DeployedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save deployment %s: %w", rec.TransactionHash, err)
	}
	return nil
}

func scanDeployment(row pgx.Row) (domain.DeploymentRecord, error) {
	var r domain.DeploymentRecord
	err := row.Scan(
		&r.Network, &r.ChainID, &r.ContractAddress, &r.Deployer,
		&r.TransactionHash, &r.StudioURL, &r.TxURL, &r.DeployedAt,
	)
	return r, err
}

// Latest returns the most recent deployment on network.
func (s *DeploymentStore) Latest(ctx context.Context, network string) (domain.DeploymentRecord, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments
		WHERE network = $1 ORDER BY deployed_at DESC, id DESC LIMIT 1`

	r, err := scanDeployment(s.pool.QueryRow(ctx, query, network))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DeploymentRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.DeploymentRecord{}, fmt.Errorf("postgres: latest deployment on %s: %w", network, err)
	}
	return r, nil
}

// List returns deployments newest first.
func (s *DeploymentStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.DeploymentRecord, error) {
	query, args := pageClause(`SELECT `+deploymentColumns+` FROM deployments`,
		"deployed_at DESC, id DESC", nil, opts.Limit, opts.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list deployments: %w", err)
	}
	defer rows.Close()

	var out []domain.DeploymentRecord
	for rows.Next() {
		r, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan deployment: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list deployments rows: %w", err)
	}
	return out, nil
}

var _ domain.DeploymentStore = (*DeploymentStore)(nil)
