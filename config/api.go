package config

// GetAuthSkipperPaths returns a list of paths to skip authentication for
func GetAuthSkipperPaths() []string {
	// Public read paths: availability browse needs no credentials. GraphQL
	// is mounted outside the /api group and never hits this middleware.
	return []string{"/api/lending/pools", "/api/lending/pools/:resource_id"}
}
