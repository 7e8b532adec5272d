// Package buildinfo exposes version information injected at build time:
//
//	go build -ldflags "-X github.com/yndnr/licmesh/internal/infra/buildinfo.Version=v1.0.0 \
//	  -X github.com/yndnr/licmesh/internal/infra/buildinfo.Commit=$(git rev-parse --short HEAD)"
package buildinfo
