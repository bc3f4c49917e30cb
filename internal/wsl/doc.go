// Package wsl drives wsl.exe and wslconfig.exe. Client hides the differences
// between modern and legacy hosts; Controller implements the lifecycle steps
// (enable WSL, negotiate the protocol version, install, configure and set the
// default distribution) on top of it.
package wsl
