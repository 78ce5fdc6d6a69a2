package version

// Version is overridden at build time with
// -ldflags "-X github.com/bnema/truck-load-watch/internal/version.Version=...".
var Version = "dev"
