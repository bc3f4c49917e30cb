// Package distribution holds the catalog of Linux distributions that can be
// provisioned, their package-manager families and the lookup of installer
// download locations. Distributions register themselves in init() and are
// resolved by the case-sensitive identifier callers use in their workflow.
package distribution
