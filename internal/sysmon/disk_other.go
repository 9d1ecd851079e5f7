//go:build !linux && !darwin && !freebsd

package sysmon

import "errors"

func diskUsage(path string) (Disk, error) {
	return Disk{}, errors.New("disk usage not supported on this platform")
}
