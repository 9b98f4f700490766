//go:build unix

package engine

import "syscall"

var exhaustionErrors = []error{syscall.ENOSPC, syscall.EDQUOT, syscall.EMFILE, syscall.ENFILE}
