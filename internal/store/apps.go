package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andrel/aaus/internal/apkid"
)

type appRow struct {
	Name       string         `db:"name"`
	Label      string         `db:"label"`
	GroupName  sql.NullString `db:"group_name"`
	LastUpdate int64          `db:"last_update"`
	Icon       []byte         `db:"icon"`
}

func (r appRow) toApp() (*App, error) {
	name, err := apkid.NewPackageName(r.Name)
	if err != nil {
		return nil, err
	}
	app := &App{
		Name:       name,
		Label:      r.Label,
		LastUpdate: apkid.Timestamp(r.LastUpdate),
		Icon:       r.Icon,
	}
	if r.GroupName.Valid {
		g := apkid.GroupName(r.GroupName.String)
		app.Group = &g
	}
	return app, nil
}

// GetApp returns the Package row for name, or (nil, nil) if absent.
func (db *DB) GetApp(ctx context.Context, name apkid.PackageName) (*App, error) {
	var row appRow
	err := db.sqlx.GetContext(ctx, &row, `SELECT name, label, group_name, last_update, icon FROM packages WHERE name = ?`, name.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting app %s: %w", name, err)
	}
	return row.toApp()
}

// DoesAppExist reports whether a Package row exists for name.
func (db *DB) DoesAppExist(ctx context.Context, name apkid.PackageName) (bool, error) {
	var count int
	if err := db.sqlx.GetContext(ctx, &count, `SELECT COUNT(1) FROM packages WHERE name = ?`, name.String()); err != nil {
		return false, fmt.Errorf("checking app existence for %s: %w", name, err)
	}
	return count > 0, nil
}

// ForEachAppName invokes fn for every package name in ascending order,
// stopping and returning fn's error if it returns non-nil.
func (db *DB) ForEachAppName(ctx context.Context, fn func(apkid.PackageName) error) error {
	var names []string
	if err := db.sqlx.SelectContext(ctx, &names, `SELECT name FROM packages ORDER BY name ASC`); err != nil {
		return fmt.Errorf("listing app names: %w", err)
	}
	for _, n := range names {
		pkg, err := apkid.NewPackageName(n)
		if err != nil {
			return fmt.Errorf("corrupt package name %q in store: %w", n, err)
		}
		if err := fn(pkg); err != nil {
			return err
		}
	}
	return nil
}

// AllApps returns every Package row, ascending by name.
func (db *DB) AllApps(ctx context.Context) ([]*App, error) {
	var rows []appRow
	if err := db.sqlx.SelectContext(ctx, &rows, `SELECT name, label, group_name, last_update, icon FROM packages ORDER BY name ASC`); err != nil {
		return nil, fmt.Errorf("listing apps: %w", err)
	}
	apps := make([]*App, 0, len(rows))
	for _, r := range rows {
		app, err := r.toApp()
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// SetGroupForPackages sets (or clears, if g is nil) the group pointer on
// the named packages.
func SetGroupForPackages(tx *Tx, g *apkid.GroupName, pkgs []apkid.PackageName, ts apkid.Timestamp) error {
	var groupVal interface{}
	if g != nil {
		groupVal = g.String()
	}
	for _, p := range pkgs {
		if _, err := tx.tx.Exec(`UPDATE packages SET group_name = ?, last_update = ? WHERE name = ?`, groupVal, int64(ts), p.String()); err != nil {
			return fmt.Errorf("setting group for %s: %w", p, err)
		}
	}
	return nil
}

// CreateGroup is SetGroupForPackages with a non-nil group, failing if any
// named package doesn't exist.
func CreateGroup(tx *Tx, g apkid.GroupName, pkgs []apkid.PackageName, ts apkid.Timestamp) error {
	for _, p := range pkgs {
		var count int
		if err := tx.tx.Get(&count, `SELECT COUNT(1) FROM packages WHERE name = ?`, p.String()); err != nil {
			return fmt.Errorf("checking package %s exists: %w", p, err)
		}
		if count == 0 {
			return fmt.Errorf("package %s does not exist", p)
		}
	}
	return SetGroupForPackages(tx, &g, pkgs, ts)
}

// DeleteGroup nullifies the group pointer on every member of g (spec §4.B:
// "group deletion cascades to nullifying the group pointer on all members").
func DeleteGroup(tx *Tx, g apkid.GroupName, ts apkid.Timestamp) error {
	if _, err := tx.tx.Exec(`UPDATE packages SET group_name = NULL, last_update = ? WHERE group_name = ?`, int64(ts), g.String()); err != nil {
		return fmt.Errorf("deleting group %s: %w", g, err)
	}
	return nil
}

// GetGroupToAppMap returns every package that has a group, keyed by group.
func (db *DB) GetGroupToAppMap(ctx context.Context) (map[apkid.GroupName][]apkid.PackageName, error) {
	var rows []struct {
		Name  string `db:"name"`
		Group string `db:"group_name"`
	}
	if err := db.sqlx.SelectContext(ctx, &rows, `SELECT name, group_name FROM packages WHERE group_name IS NOT NULL ORDER BY group_name, name`); err != nil {
		return nil, fmt.Errorf("listing group map: %w", err)
	}
	out := make(map[apkid.GroupName][]apkid.PackageName)
	for _, r := range rows {
		pkg, err := apkid.NewPackageName(r.Name)
		if err != nil {
			return nil, err
		}
		g := apkid.GroupName(r.Group)
		out[g] = append(out[g], pkg)
	}
	return out, nil
}

// GetAppLabelsInGroup returns package-name→label for every member of g.
func (db *DB) GetAppLabelsInGroup(ctx context.Context, g apkid.GroupName) (map[apkid.PackageName]string, error) {
	var rows []struct {
		Name  string `db:"name"`
		Label string `db:"label"`
	}
	if err := db.sqlx.SelectContext(ctx, &rows, `SELECT name, label FROM packages WHERE group_name = ?`, g.String()); err != nil {
		return nil, fmt.Errorf("listing labels in group %s: %w", g, err)
	}
	out := make(map[apkid.PackageName]string, len(rows))
	for _, r := range rows {
		pkg, err := apkid.NewPackageName(r.Name)
		if err != nil {
			return nil, err
		}
		out[pkg] = r.Label
	}
	return out, nil
}

// GetAppsInGroupButExcludingApps returns group members other than those
// listed in exclude, used to warn about siblings left behind by a partial
// group update.
func (db *DB) GetAppsInGroupButExcludingApps(ctx context.Context, g apkid.GroupName, exclude []apkid.PackageName) ([]apkid.PackageName, error) {
	excluded := make(map[apkid.PackageName]struct{}, len(exclude))
	for _, p := range exclude {
		excluded[p] = struct{}{}
	}
	var names []string
	if err := db.sqlx.SelectContext(ctx, &names, `SELECT name FROM packages WHERE group_name = ? ORDER BY name`, g.String()); err != nil {
		return nil, fmt.Errorf("listing group %s members: %w", g, err)
	}
	var out []apkid.PackageName
	for _, n := range names {
		pkg, err := apkid.NewPackageName(n)
		if err != nil {
			return nil, err
		}
		if _, skip := excluded[pkg]; skip {
			continue
		}
		out = append(out, pkg)
	}
	return out, nil
}
