package proptree

import "github.com/CK6170/vnacal-go/vnaerr"

func errUsage(format string, args ...interface{}) error {
	return vnaerr.Usagef(format, args...)
}

func errSyntax(format string, args ...interface{}) error {
	return vnaerr.New(vnaerr.Syntax, vnaerr.INVAL, format, args...)
}

func errNoEnt(format string, args ...interface{}) error {
	return vnaerr.New(vnaerr.Usage, vnaerr.NOENT, format, args...)
}

// IsNotFound reports whether err is the NOENT error this package returns
// for a path that does not reach an existing node.
func IsNotFound(err error) bool {
	return isNoEnt(err)
}
