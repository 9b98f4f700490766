//go:build !unix

package engine

import "syscall"

var exhaustionErrors = []error{syscall.ENOSPC, syscall.EMFILE}
