// Package profiles registers all import profiles with the core registry.
// Import this package to ensure all profiles are registered.
package profiles

// Each profile file uses init() to register its profile.
