// Package catalog maintains the SQL mirror of published crate metadata
// used for listing and search, secondary to the Git index.
package catalog

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/Masterminds/semver/v3"
	_ "modernc.org/sqlite"

	"github.com/onelson/estuary-go/internal/apperrors"
)

const schema = `
CREATE TABLE IF NOT EXISTS crates (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_crates_name ON crates (name);

CREATE TABLE IF NOT EXISTS crate_versions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	crate_id    INTEGER NOT NULL REFERENCES crates(id) ON DELETE CASCADE,
	vers        TEXT    NOT NULL,
	description TEXT,
	yanked      INTEGER NOT NULL,
	metadata    TEXT    NOT NULL,
	created     TEXT    NOT NULL,
	modified    TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_crate_versions_crate_vers
	ON crate_versions (crate_id, vers);
`

// Catalog wraps the registry's SQLite-backed secondary store.
type Catalog struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures its schema exists.
func Open(path string) (*Catalog, apperrors.Envelope) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.CodeDbError, "failed to open catalog database", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.WrapError(apperrors.CodeDbError, "failed to apply catalog schema", err)
	}
	return &Catalog{db: db}, apperrors.Envelope{}
}

// Close releases the underlying database handle.
func (c *Catalog) Close() error { return c.db.Close() }

// NewCrateDependency is a dependency entry as carried in the catalog's
// persisted metadata, matching the publish submission's wire shape.
type NewCrateDependency struct {
	Name               string   `json:"name"`
	VersionReq         string   `json:"version_req"`
	Features           []string `json:"features"`
	Optional           bool     `json:"optional"`
	DefaultFeatures    bool     `json:"default_features"`
	Target             *string  `json:"target,omitempty"`
	Kind               string   `json:"kind"`
	Registry           *string  `json:"registry,omitempty"`
	ExplicitNameInToml *string  `json:"explicit_name_in_toml,omitempty"`
}

// NewCrate is the full publish-time metadata envelope persisted verbatim
// (as JSON) alongside the summary columns used for listing. It carries
// everything a PackageVersion does, plus the richer fields the index
// itself never stores.
type NewCrate struct {
	Name          string                        `json:"name"`
	Vers          string                        `json:"vers"`
	Deps          []NewCrateDependency          `json:"deps"`
	Features      map[string][]string           `json:"features"`
	Links         *string                       `json:"links,omitempty"`
	Description   *string                       `json:"description,omitempty"`
	Authors       []string                      `json:"authors,omitempty"`
	Documentation *string                       `json:"documentation,omitempty"`
	Homepage      *string                       `json:"homepage,omitempty"`
	Readme        *string                       `json:"readme,omitempty"`
	ReadmeFile    *string                       `json:"readme_file,omitempty"`
	Keywords      []string                      `json:"keywords,omitempty"`
	Categories    []string                      `json:"categories,omitempty"`
	License       *string                       `json:"license,omitempty"`
	LicenseFile   *string                       `json:"license_file,omitempty"`
	Repository    *string                       `json:"repository,omitempty"`
	Badges        map[string]map[string]string `json:"badges,omitempty"`
}

// PublishRow upserts the crate's row and inserts a new version row for nc.
// A conflicting (crate_id, vers) pair is a hard error.
func (c *Catalog) PublishRow(nc NewCrate) apperrors.Envelope {
	tx, err := c.db.Begin()
	if err != nil {
		return apperrors.WrapError(apperrors.CodeDbError, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	crateID, env := getOrCreateCrate(tx, nc.Name)
	if env.Code != "" {
		return env
	}

	metadata, err := json.Marshal(nc)
	if err != nil {
		return apperrors.WrapError(apperrors.CodeDbError, "failed to marshal catalog metadata", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.Exec(
		`INSERT INTO crate_versions (crate_id, vers, description, yanked, metadata, created)
		 VALUES (?, ?, ?, 0, ?, ?)`,
		crateID, nc.Vers, nc.Description, string(metadata), now,
	)
	if err != nil {
		return apperrors.WrapError(apperrors.CodePublish, "version already exists in catalog", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.WrapError(apperrors.CodeDbError, "failed to commit catalog transaction", err)
	}
	return apperrors.Envelope{}
}

func getOrCreateCrate(tx *sql.Tx, name string) (int64, apperrors.Envelope) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM crates WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, apperrors.Envelope{}
	}
	if err != sql.ErrNoRows {
		return 0, apperrors.WrapError(apperrors.CodeDbError, "failed to look up crate", err)
	}

	res, err := tx.Exec(`INSERT INTO crates (name) VALUES (?)`, name)
	if err != nil {
		return 0, apperrors.WrapError(apperrors.CodeDbError, "failed to insert crate", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, apperrors.WrapError(apperrors.CodeDbError, "failed to read inserted crate id", err)
	}
	return id, apperrors.Envelope{}
}

// SetYankedRow flips the yanked flag for (name, vers) and stamps modified.
func (c *Catalog) SetYankedRow(name, vers string, yanked bool) apperrors.Envelope {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := c.db.Exec(
		`UPDATE crate_versions SET yanked = ?, modified = ?
		 WHERE crate_id = (SELECT id FROM crates WHERE name = ?) AND vers = ?`,
		boolToInt(yanked), now, name, vers,
	)
	if err != nil {
		return apperrors.WrapError(apperrors.CodeDbError, "failed to update yanked flag", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return apperrors.WrapError(apperrors.CodeDbError, "failed to read affected rows", err)
	}
	if rows == 0 {
		return apperrors.New(apperrors.CodeNotFound, "version not found in catalog")
	}
	return apperrors.Envelope{}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CrateSummary is a row used to back the naive search scoring.
type CrateSummary struct {
	Name        string
	MaxVersion  string
	Description string
}

// ListCrateSummaries returns one summary per crate, with its highest
// non-yanked version (crates with only yanked versions are omitted).
func (c *Catalog) ListCrateSummaries() ([]CrateSummary, apperrors.Envelope) {
	rows, err := c.db.Query(`
		SELECT c.name, cv.vers, COALESCE(cv.description, '')
		FROM crates c
		JOIN crate_versions cv ON cv.crate_id = c.id
		WHERE cv.yanked = 0
		ORDER BY c.name
	`)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.CodeDbError, "failed to list crate summaries", err)
	}
	defer rows.Close()

	var result []CrateSummary
	indexByName := map[string]int{}
	for rows.Next() {
		var summary CrateSummary
		if err := rows.Scan(&summary.Name, &summary.MaxVersion, &summary.Description); err != nil {
			return nil, apperrors.WrapError(apperrors.CodeDbError, "failed to scan crate summary", err)
		}
		if i, ok := indexByName[summary.Name]; ok {
			if versionGreater(summary.MaxVersion, result[i].MaxVersion) {
				result[i] = summary
			}
			continue
		}
		indexByName[summary.Name] = len(result)
		result = append(result, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.WrapError(apperrors.CodeDbError, "failed to iterate crate summaries", err)
	}

	return result, apperrors.Envelope{}
}

// versionGreater reports whether candidate outranks current by semver
// precedence, falling back to a lexical comparison if either fails to
// parse (should not happen for versions that passed publish validation).
func versionGreater(candidate, current string) bool {
	cv, err1 := semver.NewVersion(candidate)
	cur, err2 := semver.NewVersion(current)
	if err1 != nil || err2 != nil {
		return candidate > current
	}
	return cv.GreaterThan(cur)
}
