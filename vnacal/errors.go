package vnacal

import "github.com/CK6170/vnacal-go/vnaerr"

func errUsage(format string, args ...interface{}) error {
	return vnaerr.Usagef(format, args...)
}

func errSyntax(format string, args ...interface{}) error {
	return vnaerr.New(vnaerr.Syntax, vnaerr.INVAL, format, args...)
}

func errVersion(format string, args ...interface{}) error {
	return vnaerr.New(vnaerr.Version, vnaerr.NOSYS, format, args...)
}

func errNoEnt(format string, args ...interface{}) error {
	return vnaerr.New(vnaerr.Usage, vnaerr.NOENT, format, args...)
}

func errSystem(format string, args ...interface{}) error {
	return vnaerr.New(vnaerr.System, vnaerr.NOMEM, format, args...)
}
