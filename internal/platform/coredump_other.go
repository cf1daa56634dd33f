//go:build !linux && !darwin && !freebsd

package platform

import "github.com/pkg/errors"

var errUnsupported = errors.New("platform: core dump limits are not supported on this OS")

func DisableCoreDumps() error { return errUnsupported }

func CoreDumpLimit() (uint64, error) { return 0, errUnsupported }
