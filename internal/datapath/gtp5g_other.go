//go:build !linux

package datapath

import "fmt"

// NewGTP5G is unavailable outside Linux: gtp5g is a Linux kernel
// module, and genetlink sockets do not exist on other platforms.
func NewGTP5G() (Datapath, error) {
	return nil, fmt.Errorf("gtp5g datapath is only available on linux")
}
