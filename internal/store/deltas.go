package store

import (
	"context"
	"fmt"

	"github.com/andrel/aaus/internal/apkid"
)

// InsertDeltaInfos inserts records, all assumed to belong to packages that
// already exist.
func InsertDeltaInfos(tx *Tx, records []DeltaRecord) error {
	for _, r := range records {
		if _, err := tx.tx.Exec(`INSERT INTO delta_records (package, base_version, target_version, sha256) VALUES (?, ?, ?, ?)`,
			r.Package.String(), r.Base.Int64(), r.Target.Int64(), r.SHA256.String()); err != nil {
			return fmt.Errorf("inserting delta record %s %s->%s: %w", r.Package, r.Base, r.Target, err)
		}
	}
	return nil
}

// DeleteDeltasForApp removes every DeltaRecord for pkg, in preparation for
// InsertDeltaInfos replacing the set atomically within the same
// transaction (spec §4.B).
func DeleteDeltasForApp(tx *Tx, pkg apkid.PackageName) error {
	if _, err := tx.tx.Exec(`DELETE FROM delta_records WHERE package = ?`, pkg.String()); err != nil {
		return fmt.Errorf("deleting delta records for %s: %w", pkg, err)
	}
	return nil
}

// GetDeltaRecords returns every DeltaRecord for pkg.
func (db *DB) GetDeltaRecords(ctx context.Context, pkg apkid.PackageName) ([]DeltaRecord, error) {
	var rows []struct {
		Base   int64  `db:"base_version"`
		Target int64  `db:"target_version"`
		SHA256 string `db:"sha256"`
	}
	if err := db.sqlx.SelectContext(ctx, &rows, `SELECT base_version, target_version, sha256 FROM delta_records WHERE package = ?`, pkg.String()); err != nil {
		return nil, fmt.Errorf("listing delta records for %s: %w", pkg, err)
	}
	out := make([]DeltaRecord, 0, len(rows))
	for _, r := range rows {
		sha, err := apkid.NewSha256Base64(r.SHA256)
		if err != nil {
			return nil, err
		}
		out = append(out, DeltaRecord{
			Package: pkg,
			Base:    apkid.VersionCode(r.Base),
			Target:  apkid.VersionCode(r.Target),
			SHA256:  sha,
		})
	}
	return out, nil
}
