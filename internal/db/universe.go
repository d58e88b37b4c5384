package db

import (
	"database/sql"
	"time"
)

// UniverseAsset is one tracked trading pair with its market-cap ranking.
type UniverseAsset struct {
	Symbol    string  `json:"symbol"` // exchange pair, e.g. BTCUSDT
	Name      string  `json:"name"`   // display name, e.g. Bitcoin
	Rank      int     `json:"rank"`
	MarketCap float64 `json:"market_cap"`
	UpdatedAt string  `json:"updated_at"`
}

// ReplaceUniverse swaps the stored universe for the given selection in one
// transaction, so readers never observe a half-built list.
func (d *DB) ReplaceUniverse(assets []UniverseAsset) error {
	tx, err := d.sql.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM universe"); err != nil {
		tx.Rollback()
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO universe (symbol, name, rank, market_cap, updated_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, a := range assets {
		if a.UpdatedAt == "" {
			a.UpdatedAt = now
		}
		if _, err := stmt.Exec(a.Symbol, a.Name, a.Rank, a.MarketCap, a.UpdatedAt); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// GetUniverse returns the stored universe ordered by rank.
func (d *DB) GetUniverse() ([]UniverseAsset, error) {
	rows, err := d.sql.Query(`
		SELECT symbol, name, rank, market_cap, updated_at
		  FROM universe
		 ORDER BY rank ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []UniverseAsset
	for rows.Next() {
		var a UniverseAsset
		if err := rows.Scan(&a.Symbol, &a.Name, &a.Rank, &a.MarketCap, &a.UpdatedAt); err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	if assets == nil {
		return []UniverseAsset{}, nil
	}
	return assets, nil
}

// GetUniverseAsset returns one asset by symbol, or nil when absent.
func (d *DB) GetUniverseAsset(symbol string) (*UniverseAsset, error) {
	var a UniverseAsset
	err := d.sql.QueryRow(`
		SELECT symbol, name, rank, market_cap, updated_at
		  FROM universe
		 WHERE symbol = ?`, symbol).Scan(&a.Symbol, &a.Name, &a.Rank, &a.MarketCap, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
