package engine

// NewCrateDependency is the publish-time wire shape of a dependency,
// distinct from pkgfile.Dependency in its field names (version_req rather
// than req, explicit_name_in_toml rather than package).
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

// NewCrate is the full publish-time metadata envelope submitted by the
// client, parsed tolerantly (unknown fields are ignored by
// encoding/json's default Unmarshal behavior).
type NewCrate struct {
	Name            string                        `json:"name"`
	Vers            string                        `json:"vers"`
	Deps            []NewCrateDependency          `json:"deps"`
	Features        map[string][]string           `json:"features"`
	Links           *string                       `json:"links,omitempty"`
	Description     *string                       `json:"description,omitempty"`
	Authors         []string                      `json:"authors,omitempty"`
	Documentation   *string                       `json:"documentation,omitempty"`
	Homepage        *string                       `json:"homepage,omitempty"`
	Readme          *string                       `json:"readme,omitempty"`
	ReadmeFile      *string                       `json:"readme_file,omitempty"`
	Keywords        []string                      `json:"keywords,omitempty"`
	Categories      []string                      `json:"categories,omitempty"`
	License         *string                       `json:"license,omitempty"`
	LicenseFile     *string                       `json:"license_file,omitempty"`
	Repository      *string                       `json:"repository,omitempty"`
	Badges          map[string]map[string]string `json:"badges,omitempty"`
}
