package version

// Version is the agent version, overridden at build time via
// -ldflags "-X WebReplay/WebReplay-Go-Agent/internal/version.Version=...".
var Version = "0.1.0-dev"
