//go:build !linux && !darwin && !freebsd

package policy

import "errors"

func freeBytes(string) (uint64, error) {
	return 0, errors.ErrUnsupported
}
